package notify

import (
	"fmt"
	"html/template"
	"strings"

	"priceguard/internal/models"
)

// Email bodies mirror the dashboard's green/red convention for direction.
const (
	colorIncrease = "#10b981"
	colorDecrease = "#ef4444"
)

var priceAlertTmpl = template.Must(template.New("price_alert").Parse(`<!DOCTYPE html>
<html>
<head>
<style>
  body { font-family: Arial, sans-serif; line-height: 1.6; color: #333; }
  .container { max-width: 600px; margin: 0 auto; padding: 20px; }
  .header { background-color: {{.Color}}; color: white; padding: 20px; text-align: center; border-radius: 5px 5px 0 0; }
  .content { background-color: #f9fafb; padding: 30px; border-radius: 0 0 5px 5px; }
  .alert-box { background-color: white; padding: 20px; margin: 20px 0; border-left: 4px solid {{.Color}}; border-radius: 4px; }
  .price { font-size: 32px; font-weight: bold; color: {{.Color}}; margin: 10px 0; }
  .change { font-size: 24px; color: {{.Color}}; }
  .button { display: inline-block; padding: 12px 24px; background-color: {{.Color}}; color: white; text-decoration: none; border-radius: 5px; margin-top: 20px; }
  .footer { text-align: center; margin-top: 20px; color: #6b7280; font-size: 12px; }
</style>
</head>
<body>
<div class="container">
  <div class="header"><h1>Price Alert Triggered</h1></div>
  <div class="content">
    <div class="alert-box">
      <h2>{{.Name}} ({{.Symbol}})</h2>
      <div class="price">${{.Price}}</div>
      <div class="change">{{.Change}}% {{.Verb}}</div>
    </div>
    <p>Your price alert threshold has been triggered for <strong>{{.Name}}</strong>.</p>
    <p>The price has {{.Verb}} by <strong>{{.AbsChange}}%</strong> since your last alert checkpoint.</p>
    <a href="{{.DashboardURL}}" class="button">View Dashboard</a>
    <div class="footer">
      <p>You're receiving this email because you set up price alerts on PriceGuard.</p>
      <p>Manage your alerts in your dashboard settings.</p>
    </div>
  </div>
</div>
</body>
</html>`))

var watchlistAddedTmpl = template.Must(template.New("watchlist_added").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2>Added to Watchlist: {{.Name}} ({{.Symbol}})</h2>
  <p>You will be alerted when the price moves by <strong>{{.Threshold}}%</strong> or more.</p>
  <a href="{{.DashboardURL}}">View your watchlist</a>
</div>
</body>
</html>`))

var dailySummaryTmpl = template.Must(template.New("daily_summary").Parse(`<!DOCTYPE html>
<html>
<body style="font-family: Arial, sans-serif; color: #333;">
<div style="max-width: 600px; margin: 0 auto; padding: 20px;">
  <h2>Your Daily Watchlist Summary</h2>
  <table style="width: 100%; border-collapse: collapse;">
    <tr style="text-align: left; border-bottom: 2px solid #e5e7eb;">
      <th style="padding: 8px;">Asset</th>
      <th style="padding: 8px;">Price</th>
      <th style="padding: 8px;">24h Change</th>
    </tr>
    {{range .Rows}}
    <tr style="border-bottom: 1px solid #e5e7eb;">
      <td style="padding: 8px;">{{.Name}} ({{.Symbol}})</td>
      <td style="padding: 8px;">${{.Price}}</td>
      <td style="padding: 8px; color: {{.Color}};">{{.Change}}%</td>
    </tr>
    {{end}}
  </table>
  <p><a href="{{.DashboardURL}}">Open dashboard</a></p>
</div>
</body>
</html>`))

type priceAlertData struct {
	Name         string
	Symbol       string
	Price        string
	Change       string
	AbsChange    string
	Verb         string
	Color        template.CSS
	DashboardURL string
}

func renderPriceAlert(event models.AlertEvent, dashboardURL string) (subject, body string, err error) {
	verb, color := "increased", colorIncrease
	if event.Direction == models.DirectionDecrease {
		verb, color = "decreased", colorDecrease
	}

	data := priceAlertData{
		Name:         event.Name,
		Symbol:       event.Symbol,
		Price:        event.TriggerPrice.StringFixed(2),
		Change:       event.PercentChange.StringFixed(2),
		AbsChange:    event.PercentChange.Abs().StringFixed(2),
		Verb:         verb,
		Color:        template.CSS(color),
		DashboardURL: dashboardURL,
	}

	var buf strings.Builder
	if err := priceAlertTmpl.Execute(&buf, data); err != nil {
		return "", "", err
	}
	subject = fmt.Sprintf("Price Alert: %s (%s) %s by %s%%",
		event.Name, event.Symbol, verb, data.AbsChange)
	return subject, buf.String(), nil
}

func renderWatchlistAdded(entry models.WatchlistEntry, dashboardURL string) (subject, body string, err error) {
	var buf strings.Builder
	err = watchlistAddedTmpl.Execute(&buf, struct {
		Name, Symbol, Threshold, DashboardURL string
	}{entry.Name, entry.Symbol, entry.AlertPercent.StringFixed(2), dashboardURL})
	if err != nil {
		return "", "", err
	}
	subject = fmt.Sprintf("Added to Watchlist: %s (%s)", entry.Name, entry.Symbol)
	return subject, buf.String(), nil
}

type summaryRow struct {
	Name   string
	Symbol string
	Price  string
	Change string
	Color  template.CSS
}

func renderDailySummary(rows []summaryRow, dashboardURL string) (string, error) {
	var buf strings.Builder
	err := dailySummaryTmpl.Execute(&buf, struct {
		Rows         []summaryRow
		DashboardURL string
	}{rows, dashboardURL})
	return buf.String(), err
}
