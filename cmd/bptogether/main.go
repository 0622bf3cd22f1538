// bptogether は血圧記録共有サービスのエントリーポイント。
//
//	bptogether [serve|worker|migrate|healthcheck]
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/bptogether/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "bptogether: %v\n", err)
		os.Exit(1)
	}
}
