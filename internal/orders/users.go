package orders

import (
	"context"
	"fmt"
	"net/url"

	"github.com/nao1215/minishop/pkg/httpclient"
)

// UserDirectory は注文者となるユーザーの存在を確認する。
type UserDirectory interface {
	// Exists はユーザーが存在すればtrueを返す。確認できなかった場合はエラーを返す。
	Exists(ctx context.Context, userID string) (bool, error)
}

// AllowAllDirectory はすべてのユーザーを存在するものとして扱うUserDirectory。
// ユーザーサービスへの確認を行わない構成で使用する。
type AllowAllDirectory struct{}

// Exists は常にtrueを返す。
func (AllowAllDirectory) Exists(context.Context, string) (bool, error) {
	return true, nil
}

// HTTPUserDirectory はユーザーサービスの内部APIでユーザーの存在を確認する。
type HTTPUserDirectory struct {
	client *httpclient.Client
}

// NewHTTPUserDirectory はclientでユーザーサービスに問い合わせるHTTPUserDirectoryを生成する。
func NewHTTPUserDirectory(client *httpclient.Client) *HTTPUserDirectory {
	return &HTTPUserDirectory{client: client}
}

// userLookupResponse はユーザーサービスの内部APIのレスポンス。
type userLookupResponse struct {
	Success bool `json:"success"`
	Data    struct {
		ID     string `json:"id"`
		Exists bool   `json:"exists"`
	} `json:"data"`
}

// Exists はGET /internal/v1/users/:id でユーザーの存在を確認する。404は存在しないものとして扱う。
func (d *HTTPUserDirectory) Exists(ctx context.Context, userID string) (bool, error) {
	var resp userLookupResponse
	err := d.client.GetJSON(ctx, "/internal/v1/users/"+url.PathEscape(userID), &resp)
	if httpclient.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("ユーザーの存在確認に失敗: %w", err)
	}
	return resp.Data.Exists, nil
}
