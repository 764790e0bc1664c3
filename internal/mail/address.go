package mail

import (
	"fmt"
	"strings"

	gomail "github.com/emersion/go-message/mail"
)

// Address is a mailbox with an optional display name.
type Address struct {
	Name    string `json:"name"`
	Address string `json:"address"`
}

func (a Address) String() string {
	if a.Name == "" {
		return a.Address
	}
	return (&gomail.Address{Name: a.Name, Address: a.Address}).String()
}

func (a Address) IsZero() bool { return a.Address == "" && a.Name == "" }

// AddressList is an ordered list of addresses.
type AddressList []Address

// Clone returns a copy that shares no state with l.
func (l AddressList) Clone() AddressList {
	if l == nil {
		return nil
	}
	out := make(AddressList, len(l))
	copy(out, l)
	return out
}

func (l AddressList) String() string {
	parts := make([]string, len(l))
	for i, a := range l {
		parts[i] = a.String()
	}
	return strings.Join(parts, ", ")
}

// Addresses returns the bare addresses of l.
func (l AddressList) Addresses() []string {
	out := make([]string, len(l))
	for i, a := range l {
		out[i] = a.Address
	}
	return out
}

// ParseAddress parses a single RFC 5322 address.
func ParseAddress(s string) (Address, error) {
	a, err := gomail.ParseAddress(s)
	if err != nil {
		return Address{}, fmt.Errorf("failed to parse address %q: %w", s, err)
	}
	return Address{Name: a.Name, Address: a.Address}, nil
}

// ParseAddressList parses a comma separated RFC 5322 address list. An empty
// string yields an empty list.
func ParseAddressList(s string) (AddressList, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	list, err := gomail.ParseAddressList(s)
	if err != nil {
		return nil, fmt.Errorf("failed to parse address list %q: %w", s, err)
	}
	return FromMailAddresses(list), nil
}

// FromMailAddresses converts go-message addresses.
func FromMailAddresses(list []*gomail.Address) AddressList {
	if len(list) == 0 {
		return nil
	}
	out := make(AddressList, 0, len(list))
	for _, a := range list {
		if a == nil {
			continue
		}
		out = append(out, Address{Name: a.Name, Address: a.Address})
	}
	return out
}

// MailAddresses converts l for use with go-message header setters.
func (l AddressList) MailAddresses() []*gomail.Address {
	out := make([]*gomail.Address, len(l))
	for i, a := range l {
		out[i] = &gomail.Address{Name: a.Name, Address: a.Address}
	}
	return out
}
