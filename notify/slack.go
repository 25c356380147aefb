package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/arenawatch/arenawatch/netclient"
)

type SlackNotifier struct {
	SlackWebhookURL string
	Net             *netclient.Client
	Formatter       Formatter
}

var _ Notifier = (*SlackNotifier)(nil)

type SlackWebhookBody struct {
	Text string `json:"text"`
}

func (n *SlackNotifier) Announce(ctx context.Context, text string) error {
	return n.sendSlackMsg(ctx, text)
}

func (n *SlackNotifier) Report(ctx context.Context, r Report) error {
	return n.sendSlackMsg(ctx, "⚠️ Possible sandbagging ⚠️\n"+n.Formatter.Format(r))
}

// Sends a simple slack message to a channel via "incoming webhook".
//
// The slack incoming webhook must be already configured in the slack workplace.
func (n *SlackNotifier) sendSlackMsg(ctx context.Context, msg string) error {
	body, err := json.Marshal(SlackWebhookBody{Text: msg})
	if err != nil {
		return err
	}
	resp, err := n.Net.Perform(ctx, netclient.Request{
		Method:      http.MethodPost,
		URL:         n.SlackWebhookURL,
		Body:        body,
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("slack webhook: %w", err)
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(io.LimitReader(resp.Body, 64))
	if err != nil {
		return err
	}
	if string(b) != "ok" {
		return fmt.Errorf("failed slack webhook POST request. status=%d body=%q", resp.StatusCode, string(b))
	}
	return nil
}
