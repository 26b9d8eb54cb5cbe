// Command blogflow はブログAPIサーバー、バックグラウンドワーカー、マイグレーションを起動する。
//
//	blogflow [serve]                 APIサーバー
//	blogflow worker                  予約公開・トレンド再計算・クリーンアップ
//	blogflow migrate [up|down N|version]
//	blogflow healthcheck             コンテナ用ヘルスチェック
package main

import (
	"fmt"
	"os"

	"github.com/hitoshi/blogflow/internal/app"
)

func main() {
	if err := app.Run(os.Stdout, os.Args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "blogflow: %v\n", err)
		os.Exit(1)
	}
}
