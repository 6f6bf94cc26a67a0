package intake

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"dental-intake-bot/internal/catalog"
)

// ErrUnknownToken is returned for choice payloads this bot never issued.
var ErrUnknownToken = errors.New("unknown choice token")

// TokenKind tags what a choice button means.
type TokenKind string

const (
	TokenResume   TokenKind = "r"
	TokenField    TokenKind = "f"
	TokenRepeat   TokenKind = "t"
	TokenConfirm  TokenKind = "c"
	TokenEdit     TokenKind = "e"
	TokenEditBack TokenKind = "b"
)

// Action is the verb carried by resume, repeat and confirm tokens.
type Action string

const (
	ActionContinue Action = "continue"
	ActionRestart  Action = "restart"
	ActionYes      Action = "yes"
	ActionNo       Action = "no"
	ActionChange   Action = "change"
)

// Token is the decoded form of a choice payload.
//
//	r:<continue|restart>
//	f:<field>:<option>
//	t:<yes|no>
//	c:<yes|no|change>
//	e:p:<field> | e:x:<field> | e:t:<index> | e:t:<index>:<field>
//	b
type Token struct {
	Kind   TokenKind
	Action Action
	Group  catalog.Group
	Index  int
	Field  string
	Option string
}

var groupCodes = map[catalog.Group]string{
	catalog.GroupPatient:     "p",
	catalog.GroupTooth:       "t",
	catalog.GroupExamination: "x",
}

func groupFromCode(code string) (catalog.Group, bool) {
	for g, c := range groupCodes {
		if c == code {
			return g, true
		}
	}
	return "", false
}

func resumeToken(a Action) Token  { return Token{Kind: TokenResume, Action: a} }
func repeatToken(a Action) Token  { return Token{Kind: TokenRepeat, Action: a} }
func confirmToken(a Action) Token { return Token{Kind: TokenConfirm, Action: a} }

func fieldToken(field, option string) Token {
	return Token{Kind: TokenField, Field: field, Option: option}
}

func editFieldToken(g catalog.Group, index int, field string) Token {
	return Token{Kind: TokenEdit, Group: g, Index: index, Field: field}
}

// Encode renders the token as a callback payload.
func (t Token) Encode() string {
	switch t.Kind {
	case TokenResume, TokenRepeat, TokenConfirm:
		return string(t.Kind) + ":" + string(t.Action)
	case TokenField:
		return "f:" + t.Field + ":" + t.Option
	case TokenEdit:
		code := groupCodes[t.Group]
		if t.Group == catalog.GroupTooth {
			s := "e:" + code + ":" + strconv.Itoa(t.Index)
			if t.Field != "" {
				s += ":" + t.Field
			}
			return s
		}
		return "e:" + code + ":" + t.Field
	case TokenEditBack:
		return "b"
	}
	return ""
}

// ParseToken decodes a callback payload.
func ParseToken(raw string) (Token, error) {
	parts := strings.Split(raw, ":")
	bad := fmt.Errorf("%w: %q", ErrUnknownToken, raw)

	switch TokenKind(parts[0]) {
	case TokenResume:
		if len(parts) == 2 && (Action(parts[1]) == ActionContinue || Action(parts[1]) == ActionRestart) {
			return resumeToken(Action(parts[1])), nil
		}
	case TokenRepeat:
		if len(parts) == 2 && (Action(parts[1]) == ActionYes || Action(parts[1]) == ActionNo) {
			return repeatToken(Action(parts[1])), nil
		}
	case TokenConfirm:
		if len(parts) == 2 {
			switch a := Action(parts[1]); a {
			case ActionYes, ActionNo, ActionChange:
				return confirmToken(a), nil
			}
		}
	case TokenField:
		if len(parts) == 3 && parts[1] != "" && parts[2] != "" {
			return fieldToken(parts[1], parts[2]), nil
		}
	case TokenEdit:
		if len(parts) < 3 {
			return Token{}, bad
		}
		g, ok := groupFromCode(parts[1])
		if !ok {
			return Token{}, bad
		}
		if g == catalog.GroupTooth {
			idx, err := strconv.Atoi(parts[2])
			if err != nil || idx < 0 || len(parts) > 4 {
				return Token{}, bad
			}
			tok := editFieldToken(g, idx, "")
			if len(parts) == 4 {
				tok.Field = parts[3]
			}
			return tok, nil
		}
		if len(parts) == 3 && parts[2] != "" {
			return editFieldToken(g, 0, parts[2]), nil
		}
	case TokenEditBack:
		if len(parts) == 1 {
			return Token{Kind: TokenEditBack}, nil
		}
	}
	return Token{}, bad
}
