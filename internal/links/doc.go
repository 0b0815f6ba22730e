// Package links extracts URLs from chat message text, in both Slack
// markup form (<url|label>) and bare form.
package links
