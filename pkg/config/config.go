// Package config は環境変数からの設定読み込みを提供する。
// カレントディレクトリに .env があれば読み込み、既存の環境変数を優先する。
package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Load は .env ファイルを読み込む。ファイルが存在しない場合は何もしない。
func Load() {
	if _, err := os.Stat(".env"); err != nil {
		return
	}
	if err := godotenv.Load(); err != nil {
		log.Printf("[Config] .envの読み込みに失敗: %v", err)
	}
}

// GetEnvOr は環境変数を取得し、設定されていない場合はデフォルト値を返す。
func GetEnvOr(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// GetIntOr は環境変数を整数として取得する。未設定または不正な値の場合はデフォルト値を返す。
func GetIntOr(key string, defaultValue int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("[Config] %sの値が整数ではありません: %q", key, v)
		return defaultValue
	}
	return n
}

// GetDurationOr は環境変数を time.Duration として取得する。
func GetDurationOr(key string, defaultValue time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultValue
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("[Config] %sの値が期間として不正です: %q", key, v)
		return defaultValue
	}
	return d
}

// GetBool は環境変数を真偽値として取得する。未設定や不正な値はfalse。
func GetBool(key string) bool {
	b, err := strconv.ParseBool(os.Getenv(key))
	return err == nil && b
}

// GetList はカンマ区切りの環境変数を空要素を除いたスライスとして取得する。
func GetList(key string) []string {
	var out []string
	for _, s := range strings.Split(os.Getenv(key), ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}
