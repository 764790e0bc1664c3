package mailclient

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	goimap "github.com/emersion/go-imap/v2"

	"github.com/bscott/mailgate/internal/filter"
	"github.com/bscott/mailgate/internal/imap"
	"github.com/bscott/mailgate/internal/resource"
)

// header attributes, matched as substrings as IMAP SEARCH does
var headerFields = map[string]string{
	"subject":    "Subject",
	"from":       "From",
	"to":         "To",
	"cc":         "Cc",
	"bcc":        "Bcc",
	"messageId":  "Message-ID",
	"inReplyTo":  "In-Reply-To",
	"references": "References",
}

var flagFields = map[string]goimap.Flag{
	"seen":     goimap.FlagSeen,
	"answered": goimap.FlagAnswered,
	"draft":    goimap.FlagDraft,
	"flagged":  goimap.FlagFlagged,
}

var sortKeys = map[string]imap.SortKey{
	"date":    imap.SortDate,
	"size":    imap.SortSize,
	"subject": imap.SortSubject,
	"from":    imap.SortFrom,
	"to":      imap.SortTo,
	"cc":      imap.SortCc,
	"id":      imap.SortArrival,
}

var dateLayouts = []string{time.RFC3339, "2006-01-02"}

// FilterableFields lists the message item attributes SearchCriteria can
// translate.
func FilterableFields() []string {
	return []string{
		"id", "subject", "from", "to", "cc", "bcc", "messageId", "inReplyTo",
		"references", "size", "date", "seen", "answered", "draft", "flagged",
	}
}

// SearchCriteria translates a filter expression into IMAP search
// criteria. A nil expression matches every message.
func (c *Client) SearchCriteria(expr filter.Expression) (*goimap.SearchCriteria, error) {
	if expr == nil {
		return &goimap.SearchCriteria{}, nil
	}
	return translate(expr)
}

func translate(expr filter.Expression) (*goimap.SearchCriteria, error) {
	switch e := expr.(type) {
	case *filter.LogicalExpression:
		return translateLogical(e)
	case *filter.RelationalExpression:
		return translateRelational(e)
	case *filter.FunctionalExpression:
		return translateFunctional(e)
	}
	return nil, serviceErrorf("unsupported filter expression %s", expr)
}

func translateLogical(e *filter.LogicalExpression) (*goimap.SearchCriteria, error) {
	subs := make([]*goimap.SearchCriteria, 0, len(e.Operands()))
	for _, op := range e.Operands() {
		sub, ok := op.(filter.Expression)
		if !ok {
			return nil, serviceErrorf("%s expects expressions as operands", e.Logical())
		}
		criteria, err := translate(sub)
		if err != nil {
			return nil, err
		}
		subs = append(subs, criteria)
	}

	switch e.Logical() {
	case filter.And:
		out := &goimap.SearchCriteria{}
		for _, s := range subs {
			andCriteria(out, s)
		}
		return out, nil
	case filter.Or:
		// OR is binary in IMAP; fold left.
		acc := subs[0]
		for _, s := range subs[1:] {
			acc = &goimap.SearchCriteria{Or: [][2]goimap.SearchCriteria{{*acc, *s}}}
		}
		return acc, nil
	case filter.Not:
		return negate(subs[0]), nil
	}
	return nil, serviceErrorf("unsupported logical operator %s", e.Logical())
}

func translateRelational(e *filter.RelationalExpression) (*goimap.SearchCriteria, error) {
	attr, value, err := attributeAndValue(e.Operands())
	if err != nil {
		return nil, err
	}
	op := e.Relational()

	if header, ok := headerFields[attr]; ok {
		s := fmt.Sprint(value)
		criteria := &goimap.SearchCriteria{
			Header: []goimap.SearchCriteriaHeaderField{{Key: header, Value: s}},
		}
		switch op {
		case filter.Is:
			return criteria, nil
		case filter.IsNot:
			return negate(criteria), nil
		}
		return nil, serviceErrorf("%s cannot be compared with %s", attr, op.Symbol())
	}

	if flag, ok := flagFields[attr]; ok {
		set, err := toBool(value)
		if err != nil {
			return nil, serviceErrorf("%s: %v", attr, err)
		}
		switch op {
		case filter.Is:
		case filter.IsNot:
			set = !set
		default:
			return nil, serviceErrorf("%s cannot be compared with %s", attr, op.Symbol())
		}
		if set {
			return &goimap.SearchCriteria{Flag: []goimap.Flag{flag}}, nil
		}
		return &goimap.SearchCriteria{NotFlag: []goimap.Flag{flag}}, nil
	}

	switch attr {
	case "size":
		n, err := toInt(value)
		if err != nil {
			return nil, serviceErrorf("size: %v", err)
		}
		return sizeCriteria(op, n)
	case "date":
		d, err := toDate(value)
		if err != nil {
			return nil, serviceErrorf("date: %v", err)
		}
		return dateCriteria(op, d)
	case "id":
		n, err := toInt(value)
		if err != nil {
			return nil, serviceErrorf("id: %v", err)
		}
		return uidCriteria(op, n)
	}
	return nil, serviceErrorf("%q cannot be searched", attr)
}

func translateFunctional(e *filter.FunctionalExpression) (*goimap.SearchCriteria, error) {
	operands := e.Operands()
	v, ok := operands[0].(filter.Variable)
	if !ok {
		return nil, serviceErrorf("%s expects an attribute first", e.Functional())
	}
	attr := unqualified(v.Name)

	var subs []*goimap.SearchCriteria
	for _, op := range operands[1:] {
		value, ok := op.(filter.Value)
		if !ok {
			return nil, serviceErrorf("%s expects values after the attribute", e.Functional())
		}
		sub, err := translateRelational(filter.NewRelational(filter.Is, filter.Variable{Name: attr}, value))
		if err != nil {
			return nil, err
		}
		subs = append(subs, sub)
	}

	if attr == "id" {
		var uids []goimap.UID
		for _, s := range subs {
			if nums, ok := s.UID[0].Nums(); ok {
				uids = append(uids, nums...)
			}
		}
		return &goimap.SearchCriteria{UID: []goimap.UIDSet{goimap.UIDSetNum(uids...)}}, nil
	}

	acc := subs[0]
	for _, s := range subs[1:] {
		acc = &goimap.SearchCriteria{Or: [][2]goimap.SearchCriteria{{*acc, *s}}}
	}
	return acc, nil
}

func sizeCriteria(op filter.RelationalOperator, n int64) (*goimap.SearchCriteria, error) {
	switch op {
	case filter.GreaterThan:
		return &goimap.SearchCriteria{Larger: n}, nil
	case filter.GreaterThanOrEqual:
		return &goimap.SearchCriteria{Larger: n - 1}, nil
	case filter.LessThan:
		return &goimap.SearchCriteria{Smaller: n}, nil
	case filter.LessThanOrEqual:
		return &goimap.SearchCriteria{Smaller: n + 1}, nil
	case filter.Is:
		return &goimap.SearchCriteria{Larger: n - 1, Smaller: n + 1}, nil
	case filter.IsNot:
		return negate(&goimap.SearchCriteria{Larger: n - 1, Smaller: n + 1}), nil
	}
	return nil, serviceErrorf("size cannot be compared with %s", op.Symbol())
}

// dateCriteria compares internal dates at day granularity.
func dateCriteria(op filter.RelationalOperator, d time.Time) (*goimap.SearchCriteria, error) {
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)
	next := day.AddDate(0, 0, 1)
	switch op {
	case filter.GreaterThan:
		return &goimap.SearchCriteria{Since: next}, nil
	case filter.GreaterThanOrEqual:
		return &goimap.SearchCriteria{Since: day}, nil
	case filter.LessThan:
		return &goimap.SearchCriteria{Before: day}, nil
	case filter.LessThanOrEqual:
		return &goimap.SearchCriteria{Before: next}, nil
	case filter.Is:
		return &goimap.SearchCriteria{Since: day, Before: next}, nil
	case filter.IsNot:
		return negate(&goimap.SearchCriteria{Since: day, Before: next}), nil
	}
	return nil, serviceErrorf("date cannot be compared with %s", op.Symbol())
}

func uidCriteria(op filter.RelationalOperator, n int64) (*goimap.SearchCriteria, error) {
	if n < 1 || n > math.MaxUint32 {
		return nil, serviceErrorf("id %d is out of range", n)
	}
	uid := goimap.UID(n)
	var set goimap.UIDSet
	switch op {
	case filter.Is, filter.IsNot:
		set = goimap.UIDSetNum(uid)
	case filter.GreaterThan:
		set = goimap.UIDSet{{Start: uid + 1, Stop: 0}}
	case filter.GreaterThanOrEqual:
		set = goimap.UIDSet{{Start: uid, Stop: 0}}
	case filter.LessThan:
		if uid == 1 {
			// nothing is below the first UID
			return &goimap.SearchCriteria{Not: []goimap.SearchCriteria{{}}}, nil
		}
		set = goimap.UIDSet{{Start: 1, Stop: uid - 1}}
	case filter.LessThanOrEqual:
		set = goimap.UIDSet{{Start: 1, Stop: uid}}
	default:
		return nil, serviceErrorf("id cannot be compared with %s", op.Symbol())
	}
	criteria := &goimap.SearchCriteria{UID: []goimap.UIDSet{set}}
	if op == filter.IsNot {
		return negate(criteria), nil
	}
	return criteria, nil
}

func negate(c *goimap.SearchCriteria) *goimap.SearchCriteria {
	return &goimap.SearchCriteria{Not: []goimap.SearchCriteria{*c}}
}

// andCriteria merges src into dst so that dst matches both.
func andCriteria(dst, src *goimap.SearchCriteria) {
	dst.SeqNum = append(dst.SeqNum, src.SeqNum...)
	dst.UID = append(dst.UID, src.UID...)
	dst.Header = append(dst.Header, src.Header...)
	dst.Body = append(dst.Body, src.Body...)
	dst.Text = append(dst.Text, src.Text...)
	dst.Flag = append(dst.Flag, src.Flag...)
	dst.NotFlag = append(dst.NotFlag, src.NotFlag...)
	dst.Not = append(dst.Not, src.Not...)
	dst.Or = append(dst.Or, src.Or...)

	if !src.Since.IsZero() && src.Since.After(dst.Since) {
		dst.Since = src.Since
	}
	if !src.Before.IsZero() && (dst.Before.IsZero() || src.Before.Before(dst.Before)) {
		dst.Before = src.Before
	}
	if !src.SentSince.IsZero() && src.SentSince.After(dst.SentSince) {
		dst.SentSince = src.SentSince
	}
	if !src.SentBefore.IsZero() && (dst.SentBefore.IsZero() || src.SentBefore.Before(dst.SentBefore)) {
		dst.SentBefore = src.SentBefore
	}
	if src.Larger > dst.Larger {
		dst.Larger = src.Larger
	}
	if src.Smaller > 0 && (dst.Smaller == 0 || src.Smaller < dst.Smaller) {
		dst.Smaller = src.Smaller
	}
}

func attributeAndValue(operands []filter.Operand) (string, any, error) {
	v, ok := operands[0].(filter.Variable)
	if !ok {
		return "", nil, serviceErrorf("expected an attribute, got %v", operands[0])
	}
	value, ok := operands[1].(filter.Value)
	if !ok {
		return "", nil, serviceErrorf("expected a value for %s", v.Name)
	}
	return unqualified(v.Name), value.V, nil
}

func unqualified(attr string) string {
	return strings.TrimPrefix(attr, resource.TypeMessageItem+".")
}

func toInt(v any) (int64, error) {
	switch x := v.(type) {
	case int64:
		return x, nil
	case int:
		return int64(x), nil
	case float64:
		return int64(x), nil
	case string:
		return strconv.ParseInt(x, 10, 64)
	}
	return 0, fmt.Errorf("expected a number, got %v", v)
}

func toBool(v any) (bool, error) {
	switch x := v.(type) {
	case bool:
		return x, nil
	case string:
		return strconv.ParseBool(x)
	case int64:
		return x != 0, nil
	}
	return false, fmt.Errorf("expected a boolean, got %v", v)
}

func toDate(v any) (time.Time, error) {
	s, ok := v.(string)
	if !ok {
		return time.Time{}, fmt.Errorf("expected a date string, got %v", v)
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("cannot parse %q as a date", s)
}

// sortCriteria maps sort fields onto server side sort keys. Fields the
// server cannot sort by are skipped. Without sort fields the newest
// messages come first.
func sortCriteria(fields []SortField) []imap.SortCriterion {
	var out []imap.SortCriterion
	for _, f := range fields {
		key, ok := sortKeys[unqualified(f.Field)]
		if !ok {
			continue
		}
		out = append(out, imap.SortCriterion{Key: key, Reverse: f.Descending})
	}
	if len(out) == 0 {
		out = []imap.SortCriterion{{Key: imap.SortDate, Reverse: true}}
	}
	return out
}
