// pkg/chat/client.go
package chat

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"StockRadar/pkg/config"
)

// Client 聊天平台API客户端
// 负责告警频道的查找/创建和消息发送
type Client struct {
	Token   string
	BaseURL string
	Client  *http.Client
}

// channelInfo 平台返回的频道信息
type channelInfo struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// createChannelRequest 建频道请求
// ReadOnly 表示普通成员仅可见不可发言, 只有机器人可写
type createChannelRequest struct {
	Name     string `json:"name"`
	ReadOnly bool   `json:"read_only"`
}

// sendMessageRequest 发消息请求
type sendMessageRequest struct {
	Content string `json:"content"`
}

// NewClient 创建新的聊天平台客户端
func NewClient(cfg *config.Config) *Client {
	return &Client{
		Token:   cfg.Chat.Token,
		BaseURL: cfg.Chat.BaseURL,
		Client: &http.Client{
			Timeout: cfg.Chat.Timeout.Std(),
		},
	}
}

// EnsureAlertChannel 查找或创建工作区的告警频道, 幂等
// 先查后建, 建时撞上平台侧的重复保护(409)则重查一次
func (c *Client) EnsureAlertChannel(ctx context.Context, workspacePlatformID, channelName string) (string, bool, error) {
	// 先查
	handle, err := c.findChannel(ctx, workspacePlatformID, channelName)
	if err != nil {
		return "", false, err
	}
	if handle != "" {
		return handle, false, nil
	}

	// 不存在则创建
	reqBody, err := json.Marshal(createChannelRequest{Name: channelName, ReadOnly: true})
	if err != nil {
		return "", false, fmt.Errorf("序列化请求失败: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/workspaces/%s/channels", c.BaseURL, workspacePlatformID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return "", false, fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return "", false, fmt.Errorf("执行HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	// 平台侧已存在同名频道, 属于良性竞争, 重查拿句柄
	if resp.StatusCode == http.StatusConflict {
		handle, err := c.findChannel(ctx, workspacePlatformID, channelName)
		if err != nil {
			return "", false, err
		}
		if handle == "" {
			return "", false, fmt.Errorf("频道冲突后重查仍未找到: %s", channelName)
		}
		return handle, false, nil
	}

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return "", false, fmt.Errorf("创建频道返回非200状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", false, fmt.Errorf("读取响应体失败: %w", err)
	}

	var created channelInfo
	if err := json.Unmarshal(body, &created); err != nil {
		return "", false, fmt.Errorf("解析响应失败: %w", err)
	}

	return created.ID, true, nil
}

// findChannel 按名称查找频道, 未找到返回空句柄
func (c *Client) findChannel(ctx context.Context, workspacePlatformID, channelName string) (string, error) {
	endpoint := fmt.Sprintf("%s/v1/workspaces/%s/channels", c.BaseURL, workspacePlatformID)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return "", fmt.Errorf("执行HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("查询频道返回非200状态码: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("读取响应体失败: %w", err)
	}

	var channels []channelInfo
	if err := json.Unmarshal(body, &channels); err != nil {
		return "", fmt.Errorf("解析响应失败: %w", err)
	}

	for _, ch := range channels {
		if ch.Name == channelName {
			return ch.ID, nil
		}
	}
	return "", nil
}

// Send 向频道发送消息
func (c *Client) Send(ctx context.Context, channelHandle, message string) error {
	reqBody, err := json.Marshal(sendMessageRequest{Content: message})
	if err != nil {
		return fmt.Errorf("序列化请求失败: %w", err)
	}

	endpoint := fmt.Sprintf("%s/v1/channels/%s/messages", c.BaseURL, channelHandle)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewBuffer(reqBody))
	if err != nil {
		return fmt.Errorf("创建HTTP请求失败: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.Token)

	resp, err := c.Client.Do(httpReq)
	if err != nil {
		return fmt.Errorf("执行HTTP请求失败: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		return fmt.Errorf("发送消息返回非200状态码: %d", resp.StatusCode)
	}
	return nil
}
