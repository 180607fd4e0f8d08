// chaos/experiments.go
package chaos

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"

	"pointnexus/internal/billing"
)

// RegisterExperiments registers the standing experiment suite. The
// webhook secret must match the server's PAYMENT_WEBHOOK_SECRET.
func (e *Engine) RegisterExperiments(webhookSecret string) {
	e.Register(e.InviteCapStormExperiment())
	e.Register(e.ExchangeStockStormExperiment())
	e.Register(e.WebhookReplayStormExperiment(webhookSecret))
	e.Register(e.ConnectionPoolExhaustionExperiment())
}

// duplicateGrantsQuery counts grant rows sharing (member, kind, note),
// which the dedupe index is supposed to make impossible.
const duplicateGrantsQuery = `
	SELECT COUNT(*) - COUNT(DISTINCT (member_id, kind, note))
	FROM ledger_entries
	WHERE kind NOT IN ('Point Exchange', 'Point Exchange Reversal')
`

func (e *Engine) capOvershootMetric() Metric {
	return Metric{
		Name: "invite_cap_overshoot",
		Query: func(ctx context.Context) (float64, error) {
			var n float64
			err := e.db.GetContext(ctx, &n, `
				SELECT COUNT(*) FROM (
					SELECT invited_by, COALESCE(SUM(use_count), 0) AS total
					FROM invite_codes WHERE reusable = TRUE
					GROUP BY invited_by
				) agg WHERE total > 30
			`)
			return n, err
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

func (e *Engine) negativeBalanceMetric() Metric {
	return Metric{
		Name: "negative_balances",
		Query: func(ctx context.Context) (float64, error) {
			var n float64
			err := e.db.GetContext(ctx, &n, `
				SELECT COUNT(*) FROM (
					SELECT member_id, SUM(points) AS balance
					FROM ledger_entries GROUP BY member_id
				) agg WHERE balance < 0
			`)
			return n, err
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}
}

// InviteCapStormExperiment floods one inviter's reusable code with
// concurrent redemptions and checks the live cap holds.
func (e *Engine) InviteCapStormExperiment() Experiment {
	return Experiment{
		Name:        "invite-cap-storm",
		Hypothesis:  "Concurrent redemptions of a reusable code never push an inviter past the live cap",
		SteadyState: []Metric{e.capOvershootMetric()},
		Method: []Action{
			{
				Type:   "concurrent-redemptions",
				Target: "invites",
				Execute: func(ctx context.Context) error {
					code := "chaos-" + uuid.NewString()[:8]
					if err := e.postJSON(ctx, "/admin/invites", map[string]any{
						"code":            code,
						"invited_by":      uuid.NewString(),
						"membership_type": "free",
						"reusable":        true,
					}, nil); err != nil {
						return err
					}

					var wg sync.WaitGroup
					for i := 0; i < 50; i++ {
						wg.Add(1)
						go func(i int) {
							defer wg.Done()
							// Over-cap attempts fail with 409, which is the
							// behavior under test, not an error.
							_ = e.postJSON(ctx, "/invites/redeem", map[string]any{
								"code":  code,
								"email": fmt.Sprintf("chaos-%s-%d@example.com", code, i),
							}, nil)
						}(i)
					}
					wg.Wait()
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "invite_cap_overshoot",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "no inviter may exceed the aggregate cap",
			},
		},
		Duration:    15 * time.Second,
		BlastRadius: 0.2,
	}
}

// ExchangeStockStormExperiment races funded members over a small stock
// and checks stock and balances never go negative.
func (e *Engine) ExchangeStockStormExperiment() Experiment {
	stockFloor := Metric{
		Name: "stock_floor",
		Query: func(ctx context.Context) (float64, error) {
			var n float64
			// -1 is the unlimited sentinel, anything else below zero is
			// an oversell.
			err := e.db.GetContext(ctx, &n,
				`SELECT COUNT(*) FROM exchange_items WHERE stock < 0 AND stock <> -1`)
			return n, err
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}

	return Experiment{
		Name:        "exchange-stock-storm",
		Hypothesis:  "Concurrent redemptions cannot oversell stock or overdraw balances",
		SteadyState: []Metric{stockFloor, e.negativeBalanceMetric()},
		Method: []Action{
			{
				Type:   "concurrent-redemptions",
				Target: "exchange",
				Execute: func(ctx context.Context) error {
					code := "chaos-x-" + uuid.NewString()[:8]
					if err := e.postJSON(ctx, "/admin/invites", map[string]any{
						"code":            code,
						"invited_by":      uuid.NewString(),
						"membership_type": "free",
						"reusable":        true,
					}, nil); err != nil {
						return err
					}

					memberIDs := make([]string, 0, 8)
					for i := 0; i < 8; i++ {
						var out struct {
							MemberID string `json:"member_id"`
						}
						if err := e.postJSON(ctx, "/invites/redeem", map[string]any{
							"code":  code,
							"email": fmt.Sprintf("chaos-x-%s-%d@example.com", code, i),
						}, &out); err != nil {
							return err
						}
						memberIDs = append(memberIDs, out.MemberID)
					}

					var item struct {
						ID string `json:"id"`
					}
					if err := e.postJSON(ctx, "/admin/exchange/items", map[string]any{
						"name":        "chaos voucher",
						"points_cost": 50,
						"stock":       3,
					}, &item); err != nil {
						return err
					}

					var wg sync.WaitGroup
					for _, memberID := range memberIDs {
						wg.Add(1)
						go func(memberID string) {
							defer wg.Done()
							_ = e.postJSON(ctx, "/exchange/redeem", map[string]any{
								"member_id": memberID,
								"item_id":   item.ID,
							}, nil)
						}(memberID)
					}
					wg.Wait()
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "stock_floor",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "stock must never go below zero",
			},
			{
				Metric:    "negative_balances",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "no member balance may go negative",
			},
		},
		Duration:    15 * time.Second,
		BlastRadius: 0.2,
	}
}

// WebhookReplayStormExperiment hammers the webhook endpoint with the
// same signed delivery and checks no grant is duplicated.
func (e *Engine) WebhookReplayStormExperiment(secret string) Experiment {
	duplicates := Metric{
		Name: "duplicate_grants",
		Query: func(ctx context.Context) (float64, error) {
			var n float64
			err := e.db.GetContext(ctx, &n, duplicateGrantsQuery)
			return n, err
		},
		Threshold: Threshold{Operator: "==", Value: 0},
	}

	return Experiment{
		Name:        "webhook-replay-storm",
		Hypothesis:  "At-least-once webhook delivery never duplicates a bonus grant",
		SteadyState: []Metric{duplicates},
		Method: []Action{
			{
				Type:   "replayed-deliveries",
				Target: "billing",
				Execute: func(ctx context.Context) error {
					code := "chaos-w-" + uuid.NewString()[:8]
					if err := e.postJSON(ctx, "/admin/invites", map[string]any{
						"code":            code,
						"invited_by":      uuid.NewString(),
						"membership_type": "premium",
					}, nil); err != nil {
						return err
					}
					var out struct {
						MemberID string `json:"member_id"`
					}
					if err := e.postJSON(ctx, "/invites/redeem", map[string]any{
						"code":  code,
						"email": "chaos-w-" + code + "@example.com",
					}, &out); err != nil {
						return err
					}

					payload, err := json.Marshal(map[string]any{
						"id":   "evt_chaos_" + code,
						"type": billing.EventCheckoutCompleted,
						"data": map[string]any{"member_id": out.MemberID},
					})
					if err != nil {
						return err
					}
					sig := billing.ComputeSignature(secret, time.Now(), payload)

					var wg sync.WaitGroup
					for i := 0; i < 50; i++ {
						wg.Add(1)
						go func() {
							defer wg.Done()
							req, err := http.NewRequestWithContext(ctx, http.MethodPost,
								e.baseURL+"/webhooks/payments", bytes.NewReader(payload))
							if err != nil {
								return
							}
							req.Header.Set("Signature", sig)
							resp, err := http.DefaultClient.Do(req)
							if err == nil {
								resp.Body.Close()
							}
						}()
					}
					wg.Wait()
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "duplicate_grants",
				Condition: func(v float64) bool { return v == 0 },
				Message:   "replayed deliveries must not duplicate grants",
			},
		},
		Duration:    15 * time.Second,
		BlastRadius: 0.3,
	}
}

// ConnectionPoolExhaustionExperiment holds database connections and
// checks the API keeps answering.
func (e *Engine) ConnectionPoolExhaustionExperiment() Experiment {
	availability := Metric{
		Name: "api_availability",
		Query: func(ctx context.Context) (float64, error) {
			req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/healthz", nil)
			if err != nil {
				return 0, err
			}
			resp, err := http.DefaultClient.Do(req)
			if err != nil {
				return 0, nil
			}
			resp.Body.Close()
			if resp.StatusCode == http.StatusOK {
				return 100, nil
			}
			return 0, nil
		},
		Threshold: Threshold{Operator: ">=", Value: 100},
	}

	return Experiment{
		Name:        "connection-pool-exhaustion",
		Hypothesis:  "The API stays responsive while the connection pool is saturated",
		SteadyState: []Metric{availability},
		Method: []Action{
			{
				Type:   "exhaust-connections",
				Target: "postgres-connection-pool",
				Execute: func(ctx context.Context) error {
					conns := make([]*sql.Conn, 0, 50)
					for i := 0; i < 50; i++ {
						conn, err := e.db.Conn(ctx)
						if err != nil {
							break
						}
						conns = append(conns, conn)
					}
					time.Sleep(15 * time.Second)
					for _, conn := range conns {
						conn.Close()
					}
					return nil
				},
			},
		},
		Validation: []Assertion{
			{
				Metric:    "api_availability",
				Condition: func(v float64) bool { return v >= 100 },
				Message:   "health endpoint should answer after the pool recovers",
			},
		},
		Duration:    30 * time.Second,
		BlastRadius: 1.0,
	}
}

func (e *Engine) postJSON(ctx context.Context, path string, body any, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		return fmt.Errorf("POST %s: status %d", path, resp.StatusCode)
	}
	if out != nil {
		return json.NewDecoder(resp.Body).Decode(out)
	}
	return nil
}
