package report

import (
	"fmt"

	"github.com/osteele/liquid"
)

// summaryTemplate is the HTML artifact body. Kept deliberately plain:
// the report is emailed and viewed in clients that strip styling.
const summaryTemplate = `<!DOCTYPE html>
<html>
<head><meta charset="utf-8"><title>{{ title }}</title></head>
<body>
<h1>{{ title }}</h1>
<p>{{ period_start }} to {{ period_end }}{% if source != "" %} ({{ source }}){% endif %}</p>

<h2>Totals</h2>
<table border="1" cellpadding="6" cellspacing="0">
<tr><th>Impressions</th><th>Clicks</th><th>Conversions</th><th>Revenue</th><th>Spend</th>
<th>CTR</th><th>CPC</th><th>CPA</th><th>ROAS</th></tr>
<tr>
<td>{{ totals.impressions }}</td>
<td>{{ totals.clicks }}</td>
<td>{{ totals.conversions }}</td>
<td>{{ totals.revenue | money }}</td>
<td>{{ totals.spend | money }}</td>
<td>{{ totals.ctr | percent }}</td>
<td>{{ totals.cpc | money }}</td>
<td>{{ totals.cpa | money }}</td>
<td>{{ totals.roas }}</td>
</tr>
</table>

<h2>Campaigns by spend</h2>
<table border="1" cellpadding="6" cellspacing="0">
<tr><th>Campaign</th><th>Impressions</th><th>Clicks</th><th>Conversions</th><th>Revenue</th><th>Spend</th></tr>
{% for c in campaigns %}
<tr>
<td>{{ c.campaign }}</td>
<td>{{ c.impressions }}</td>
<td>{{ c.clicks }}</td>
<td>{{ c.conversions }}</td>
<td>{{ c.revenue | money }}</td>
<td>{{ c.spend | money }}</td>
</tr>
{% endfor %}
</table>
</body>
</html>
`

// newTemplateEngine builds a liquid engine with the money and percent
// filters the summary template uses.
func newTemplateEngine() *liquid.Engine {
	engine := liquid.NewEngine()

	engine.RegisterFilter("money", func(value interface{}) string {
		switch v := value.(type) {
		case float64:
			return fmt.Sprintf("$%.2f", v)
		case int64:
			return fmt.Sprintf("$%d.00", v)
		default:
			return fmt.Sprintf("%v", value)
		}
	})

	engine.RegisterFilter("percent", func(value interface{}) string {
		if v, ok := value.(float64); ok {
			return fmt.Sprintf("%.2f%%", v*100)
		}
		return fmt.Sprintf("%v", value)
	})

	return engine
}
