// Package validation はリクエストDTOの入力検証を提供する。
package validation

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/hitoshi/bptogether/internal/model"
)

var (
	validate *validator.Validate

	// hhmmPattern は00:00〜23:59の時刻文字列にマッチする。
	hhmmPattern = regexp.MustCompile(`^([01][0-9]|2[0-3]):[0-5][0-9]$`)
)

func init() {
	validate = validator.New(validator.WithRequiredStructEnabled())

	// エラーメッセージにはJSONのフィールド名を使う
	validate.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = validate.RegisterValidation("hhmm", func(fl validator.FieldLevel) bool {
		return hhmmPattern.MatchString(fl.Field().String())
	})
}

// Struct はvalidateタグに従って構造体を検証する。
// 検証に失敗した場合は最初の違反フィールドを示すINVALID_REQUESTエラーを返す。
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}

	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		return model.NewInvalidRequestError(describe(verrs[0]))
	}
	return model.NewInvalidRequestError(err.Error())
}

func describe(fe validator.FieldError) string {
	field := fe.Namespace()
	if i := strings.Index(field, "."); i >= 0 {
		field = field[i+1:]
	}
	switch fe.Tag() {
	case "required":
		return fmt.Sprintf("%s は必須です", field)
	case "min", "gte":
		return fmt.Sprintf("%s は%s以上で指定してください", field, fe.Param())
	case "max", "lte":
		return fmt.Sprintf("%s は%s以下で指定してください", field, fe.Param())
	case "hhmm":
		return fmt.Sprintf("%s はHH:MM形式で指定してください", field)
	case "oneof":
		return fmt.Sprintf("%s は %s のいずれかを指定してください", field, fe.Param())
	}
	return fmt.Sprintf("%s が不正です (%s)", field, fe.Tag())
}
