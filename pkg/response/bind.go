package response

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/nao1215/minishop/pkg/apperror"
)

func init() {
	// 検証エラーのフィールド名をJSONのキー名で返すようにする
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
			if name == "-" {
				return ""
			}
			if name == "" {
				return f.Name
			}
			return name
		})
	}
}

// BindJSON はリクエストボディをoutにバインドし、binding/validateタグで検証する。
// 失敗した場合はVALIDATION_ERRORのアプリケーションエラーを返す。
func BindJSON(c *gin.Context, out any) error {
	if err := c.ShouldBindJSON(out); err != nil {
		return apperror.Validation("入力データの検証に失敗しました", ValidationDetails(err))
	}
	return nil
}

// ValidationDetails はバインド時のエラーをフィールド単位の詳細に変換する。
func ValidationDetails(err error) []apperror.FieldError {
	var ve validator.ValidationErrors
	if !errors.As(err, &ve) {
		return []apperror.FieldError{{Field: "body", Message: err.Error()}}
	}

	details := make([]apperror.FieldError, 0, len(ve))
	for _, fe := range ve {
		details = append(details, apperror.FieldError{
			Field:   trimRoot(fe.Namespace()),
			Message: fieldMessage(fe),
		})
	}
	return details
}

// trimRoot は "createOrderRequest.items[0].price" のような名前空間から構造体名を取り除く。
func trimRoot(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// fieldMessage は検証タグに応じたメッセージを返す。
func fieldMessage(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "必須項目です"
	case "min":
		return fmt.Sprintf("%s以上である必要があります", fe.Param())
	case "max":
		return fmt.Sprintf("%s以下である必要があります", fe.Param())
	case "gt":
		return fmt.Sprintf("%sより大きい必要があります", fe.Param())
	case "uuid":
		return "UUID形式である必要があります"
	case "email":
		return "メールアドレスの形式が不正です"
	case "oneof":
		return fmt.Sprintf("次のいずれかである必要があります: %s", fe.Param())
	default:
		return fmt.Sprintf("%s の検証に失敗しました", fe.Tag())
	}
}
