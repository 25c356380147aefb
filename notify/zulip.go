package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"github.com/arenawatch/arenawatch/netclient"
)

// ZulipNotifier posts stream messages with a bot's email and API key.
type ZulipNotifier struct {
	Host    string
	Auth    netclient.BasicAuth
	Channel string
	Topic   string

	Net       *netclient.Client
	Formatter Formatter
	Logger    *slog.Logger
}

var _ Notifier = (*ZulipNotifier)(nil)

type zulipResponse struct {
	Result string `json:"result"`
	Msg    string `json:"msg"`
	ID     int64  `json:"id"`
}

func (z *ZulipNotifier) Announce(ctx context.Context, text string) error {
	return z.send(ctx, text)
}

func (z *ZulipNotifier) Report(ctx context.Context, r Report) error {
	if z.Logger != nil {
		z.Logger.Debug("sending zulip report", "user", r.Player.Username, "arena", r.Arena.ID)
	}
	return z.send(ctx, z.Formatter.Format(r))
}

func (z *ZulipNotifier) send(ctx context.Context, content string) error {
	form := url.Values{}
	form.Set("type", "stream")
	form.Set("to", z.Channel)
	form.Set("topic", z.Topic)
	form.Set("content", content)

	resp, err := z.Net.Perform(ctx, netclient.Request{
		Method:      http.MethodPost,
		URL:         strings.TrimSuffix(z.Host, "/") + "/api/v1/messages",
		Body:        []byte(form.Encode()),
		ContentType: "application/x-www-form-urlencoded",
		Accept:      "application/json",
		Credential:  z.Auth,
	})
	if err != nil {
		return fmt.Errorf("zulip message: %w", err)
	}
	defer resp.Body.Close()

	var out zulipResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return fmt.Errorf("decoding zulip response: %w", err)
	}
	if out.Result != "success" {
		return fmt.Errorf("zulip message rejected: %s", out.Msg)
	}
	return nil
}
