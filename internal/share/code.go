package share

import (
	"crypto/rand"
	"fmt"
	"math/big"
)

// 共有コードは6桁の数字で、先頭が0にならない範囲から生成する。
const (
	codeMin = 100000
	codeMax = 999999
)

var codeSpan = big.NewInt(codeMax - codeMin + 1)

// randomCode は暗号論的乱数で[codeMin, codeMax]の範囲の共有コードを生成する。
func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, codeSpan)
	if err != nil {
		return "", fmt.Errorf("乱数の生成に失敗しました: %w", err)
	}
	return fmt.Sprintf("%d", n.Int64()+codeMin), nil
}
