// Package transcript rebuilds historical chat views from stored messages.
package transcript

import "github.com/nayon117/custome-chat-server/internal/domain"

// GroupByUser groups globally ordered messages by user id. The input order
// is preserved within each group, so per-user transcripts stay ascending by
// timestamp. Map iteration order carries no meaning; only intra-group order
// is part of the contract.
func GroupByUser(messages []domain.ChatMessage) map[string][]domain.ChatMessage {
	grouped := make(map[string][]domain.ChatMessage)
	for _, msg := range messages {
		grouped[msg.UserID] = append(grouped[msg.UserID], msg)
	}
	return grouped
}
