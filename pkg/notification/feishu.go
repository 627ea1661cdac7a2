package notification

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"astroline/pkg/config"
	"astroline/pkg/logger"
)

// FeishuNotifier sends operator alerts to Feishu (Lark)
type FeishuNotifier struct {
	webhookURL string
	client     *http.Client
}

// NewFeishuNotifier creates a new Feishu notifier
func NewFeishuNotifier() *FeishuNotifier {
	// Priority: config file > environment variable
	var webhookURL string
	if config.GlobalConfig != nil && config.GlobalConfig.Notification.FeishuWebhookURL != "" {
		webhookURL = config.GlobalConfig.Notification.FeishuWebhookURL
		logger.Info("Using Feishu webhook URL from config file")
	} else {
		webhookURL = os.Getenv("FEISHU_WEBHOOK_URL")
		if webhookURL != "" {
			logger.Info("Using Feishu webhook URL from environment variable")
		}
	}

	if webhookURL == "" {
		logger.Warn("Feishu webhook URL not configured (check config file or FEISHU_WEBHOOK_URL env), Feishu notifications will be disabled")
	}

	return &FeishuNotifier{
		webhookURL: webhookURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// OverloadAlert reports astrologers a rebalance pass found at or above
// the overload threshold.
type OverloadAlert struct {
	Overloaded     []string
	ThrottledCount int
	PoolSize       int
	DetectedAt     time.Time
}

// CycleAlert reports an override chain that re-entered itself; routing
// fell back to the last good node but the rule set needs operator
// attention.
type CycleAlert struct {
	Path       []string
	DetectedAt time.Time
}

// SendOverloadAlert sends an overload alert to Feishu
func (f *FeishuNotifier) SendOverloadAlert(ctx context.Context, alert *OverloadAlert) error {
	if f.webhookURL == "" {
		logger.WarnCtx(ctx, "Feishu webhook URL not configured, skipping notification")
		return nil
	}

	message := f.buildOverloadMessage(alert)
	return f.send(ctx, message)
}

// SendCycleAlert sends an override-cycle alert to Feishu
func (f *FeishuNotifier) SendCycleAlert(ctx context.Context, alert *CycleAlert) error {
	if f.webhookURL == "" {
		logger.WarnCtx(ctx, "Feishu webhook URL not configured, skipping notification")
		return nil
	}

	message := f.buildCycleMessage(alert)
	return f.send(ctx, message)
}

func (f *FeishuNotifier) send(ctx context.Context, message map[string]interface{}) error {
	payload, err := json.Marshal(message)
	if err != nil {
		return fmt.Errorf("failed to marshal Feishu message: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", f.webhookURL, bytes.NewBuffer(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send Feishu notification: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("Feishu API returned status code: %d", resp.StatusCode)
	}

	logger.InfoCtx(ctx, "Feishu notification sent successfully")
	return nil
}

// buildOverloadMessage builds a Feishu message card for overload alerts
func (f *FeishuNotifier) buildOverloadMessage(alert *OverloadAlert) map[string]interface{} {
	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"template": "red",
				"title": map[string]interface{}{
					"content": "Astrologer Pool Overloaded",
					"tag":     "plain_text",
				},
			},
			"elements": []interface{}{
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"content": fmt.Sprintf("**%d of %d** astrologers are at or above the overload threshold", len(alert.Overloaded), alert.PoolSize),
						"tag":     "lark_md",
					},
				},
				map[string]interface{}{
					"tag": "hr",
				},
				map[string]interface{}{
					"tag": "div",
					"fields": []interface{}{
						map[string]interface{}{
							"is_short": true,
							"text": map[string]interface{}{
								"content": fmt.Sprintf("**Overloaded**\n%s", strings.Join(alert.Overloaded, ", ")),
								"tag":     "lark_md",
							},
						},
						map[string]interface{}{
							"is_short": true,
							"text": map[string]interface{}{
								"content": fmt.Sprintf("**Throttle changes**\n%d", alert.ThrottledCount),
								"tag":     "lark_md",
							},
						},
					},
				},
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"content": fmt.Sprintf("**Detection Time**: %s", alert.DetectedAt.Format("2006-01-02 15:04:05")),
						"tag":     "lark_md",
					},
				},
			},
		},
	}
}

// buildCycleMessage builds a Feishu message card for override-cycle alerts
func (f *FeishuNotifier) buildCycleMessage(alert *CycleAlert) map[string]interface{} {
	return map[string]interface{}{
		"msg_type": "interactive",
		"card": map[string]interface{}{
			"header": map[string]interface{}{
				"template": "orange",
				"title": map[string]interface{}{
					"content": "Override Rule Cycle Detected",
					"tag":     "plain_text",
				},
			},
			"elements": []interface{}{
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"content": fmt.Sprintf("**Redirect chain**: %s\nRouting fell back to the last node before the cycle; the rule set needs review.", strings.Join(alert.Path, " -> ")),
						"tag":     "lark_md",
					},
				},
				map[string]interface{}{
					"tag": "div",
					"text": map[string]interface{}{
						"content": fmt.Sprintf("**Detection Time**: %s", alert.DetectedAt.Format("2006-01-02 15:04:05")),
						"tag":     "lark_md",
					},
				},
			},
		},
	}
}
