package telegram

import (
	"errors"
	"fmt"
	"net"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

func TestIsPermanent(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"rate limited", &tgbotapi.Error{Code: 429, Message: "Too Many Requests"}, false},
		{"server error", &tgbotapi.Error{Code: 500, Message: "Internal Server Error"}, false},
		{"bad gateway", &tgbotapi.Error{Code: 502, Message: "Bad Gateway"}, false},
		{"blocked by user", &tgbotapi.Error{Code: 403, Message: "Forbidden: bot was blocked by the user"}, true},
		{"bad request", &tgbotapi.Error{Code: 400, Message: "Bad Request: chat not found"}, true},
		{"network failure", &net.OpError{Op: "dial", Err: errors.New("connection refused")}, false},
		{"wrapped api error", fmt.Errorf("telegram send: %w", &tgbotapi.Error{Code: 403}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPermanent(tt.err); got != tt.want {
				t.Errorf("IsPermanent(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}
