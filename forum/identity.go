package forum

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"strconv"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"
)

// Identity 返回 cookie 对应账号的 member id，无法确定时返回 ""。
// 首页每个 Client 最多请求一次，失败结果同样会被缓存。
func (c *Client) Identity(ctx context.Context) string {
	c.identityOnce.Do(func() {
		c.identity = c.resolveIdentity(ctx)
		if c.identity == "" {
			c.logger.Debug("session identity unknown; self detection disabled")
		} else {
			c.logger.Debug("session identity resolved", zap.String("member_id", c.identity))
		}
	})
	return c.identity
}

func (c *Client) resolveIdentity(ctx context.Context) string {
	resp, err := c.transport.Send(ctx, "GET", c.cfg.BaseURL+"/", c.pageHeaders(""), nil, 0)
	if err != nil {
		c.logger.Debug("fetch landing page", zap.Error(err))
		return ""
	}
	if resp.StatusCode != 200 || len(resp.Body) == 0 {
		return ""
	}
	return identityFromPage(resp.Text())
}

// identityFromPage decodes the base64 JSON blob the site embeds in
// <script id="temp-script"> and reads user.member_id from it.
func identityFromPage(page string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return ""
	}
	blob := strings.TrimSpace(doc.Find("script#temp-script").First().Text())
	if blob == "" {
		return ""
	}
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return ""
	}
	var cfg struct {
		User struct {
			MemberID json.RawMessage `json:"member_id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return ""
	}
	return memberID(cfg.User.MemberID)
}

// memberID 兼容数字和字符串两种 JSON 形式。
func memberID(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		if _, err := strconv.ParseInt(n.String(), 10, 64); err == nil && n.String() != "0" {
			return n.String()
		}
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	return ""
}
