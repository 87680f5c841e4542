package sms

import (
	"fmt"
	"sort"
	"strings"
	"unicode/utf8"

	"sms-console/internal/model"
	"sms-console/internal/phone"
)

const (
	MaxSenderIDLength = 11
	MaxMessageLength  = 160
)

// ValidationErrors maps a form field to what is wrong with it.
type ValidationErrors map[string]string

func (v ValidationErrors) Error() string {
	fields := make([]string, 0, len(v))
	for f := range v {
		fields = append(fields, f)
	}
	sort.Strings(fields)

	parts := make([]string, 0, len(fields))
	for _, f := range fields {
		parts = append(parts, f+": "+v[f])
	}
	return "invalid request: " + strings.Join(parts, "; ")
}

// Validate returns the request to send, or ValidationErrors describing every
// offending field. Sender ID and message go out exactly as submitted; their
// lengths are counted in characters, not bytes, and whitespace-only values
// count as empty. Recipients are trimmed and blank entries dropped.
func Validate(in model.BulkSendRequest, phones phone.Pattern) (model.BulkSendRequest, error) {
	out := model.BulkSendRequest{
		SenderID: in.SenderID,
		Message:  in.Message,
	}
	for _, r := range in.Recipients {
		if r = strings.TrimSpace(r); r != "" {
			out.Recipients = append(out.Recipients, r)
		}
	}

	errs := ValidationErrors{}
	switch n := utf8.RuneCountInString(out.SenderID); {
	case strings.TrimSpace(out.SenderID) == "":
		errs["senderId"] = "sender ID is required"
	case n > MaxSenderIDLength:
		errs["senderId"] = fmt.Sprintf("sender ID must be at most %d characters", MaxSenderIDLength)
	}

	switch n := utf8.RuneCountInString(out.Message); {
	case strings.TrimSpace(out.Message) == "":
		errs["message"] = "message is required"
	case n > MaxMessageLength:
		errs["message"] = fmt.Sprintf("message must be at most %d characters", MaxMessageLength)
	}

	if len(out.Recipients) == 0 {
		errs["recipients"] = "at least one recipient is required"
	} else {
		var bad []string
		for _, r := range out.Recipients {
			if !phones.Match(r) {
				bad = append(bad, r)
			}
		}
		if len(bad) > 0 {
			errs["recipients"] = fmt.Sprintf("invalid phone number(s) %s, expected format %s",
				strings.Join(bad, ", "), phones.Example())
		}
	}

	if len(errs) > 0 {
		return model.BulkSendRequest{}, errs
	}
	return out, nil
}
