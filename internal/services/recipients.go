// Package services - recipients.go holds the recipient resolution rule for approvals.
package services

import (
	"strings"

	"github.com/qa-dashboard/qa-dashboard/internal/db/models"
)

// Recipient is one address to be notified about a draft's outcome
type Recipient struct {
	Email  string                 `json:"email"`
	Source models.RecipientSource `json:"source"`
}

// ResolveRecipients computes who is notified about a decision.
// Site members always; region members only on a fail; then the manual addresses.
// The result keeps first-seen order, has no duplicates, and drops entries that are
// empty or lack an '@'. An address the caller typed in is tagged manual even when
// the directory also returned it.
func ResolveRecipients(siteMembers, regionMembers, manual []string, decision models.Decision) []Recipient {
	manualSet := make(map[string]bool, len(manual))
	for _, m := range manual {
		manualSet[strings.TrimSpace(m)] = true
	}

	candidates := make([]string, 0, len(siteMembers)+len(regionMembers)+len(manual))
	candidates = append(candidates, siteMembers...)
	if decision == models.DecisionFail {
		candidates = append(candidates, regionMembers...)
	}
	candidates = append(candidates, manual...)

	seen := make(map[string]bool, len(candidates))
	recipients := make([]Recipient, 0, len(candidates))
	for _, c := range candidates {
		email := strings.TrimSpace(c)
		if email == "" || !strings.Contains(email, "@") || seen[email] {
			continue
		}
		seen[email] = true

		source := models.RecipientSourceDirectory
		if manualSet[email] {
			source = models.RecipientSourceManual
		}
		recipients = append(recipients, Recipient{Email: email, Source: source})
	}
	return recipients
}

// MergeMembers concatenates member lists, dropping repeats and keeping first-seen order
func MergeMembers(lists ...[]string) []string {
	seen := make(map[string]bool)
	merged := make([]string, 0)
	for _, list := range lists {
		for _, m := range list {
			if seen[m] {
				continue
			}
			seen[m] = true
			merged = append(merged, m)
		}
	}
	return merged
}

// Emails returns just the addresses of recipients
func Emails(recipients []Recipient) []string {
	out := make([]string, len(recipients))
	for i, r := range recipients {
		out[i] = r.Email
	}
	return out
}
