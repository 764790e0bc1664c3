package mail

// Flag is an IMAP system flag.
type Flag string

const (
	FlagSeen     Flag = `\Seen`
	FlagDraft    Flag = `\Draft`
	FlagFlagged  Flag = `\Flagged`
	FlagAnswered Flag = `\Answered`
	FlagRecent   Flag = `\Recent`
	FlagDeleted  Flag = `\Deleted`
)

// FlagSetting pairs a flag with the state it should be put in.
type FlagSetting struct {
	Flag  Flag
	Value bool
}

// FlagList is an ordered set of flag settings. Setting a flag twice keeps
// its first position and the last value.
type FlagList struct {
	settings []FlagSetting
}

func NewFlagList(settings ...FlagSetting) *FlagList {
	l := &FlagList{}
	for _, s := range settings {
		l.Set(s.Flag, s.Value)
	}
	return l
}

func (l *FlagList) Set(f Flag, value bool) {
	for i := range l.settings {
		if l.settings[i].Flag == f {
			l.settings[i].Value = value
			return
		}
	}
	l.settings = append(l.settings, FlagSetting{Flag: f, Value: value})
}

func (l *FlagList) Get(f Flag) (value, ok bool) {
	for _, s := range l.settings {
		if s.Flag == f {
			return s.Value, true
		}
	}
	return false, false
}

func (l *FlagList) All() []FlagSetting {
	out := make([]FlagSetting, len(l.settings))
	copy(out, l.settings)
	return out
}

func (l *FlagList) Len() int { return len(l.settings) }

// Resolve splits the list into the flags to add and the flags to remove.
func (l *FlagList) Resolve() (add, remove []string) {
	for _, s := range l.settings {
		if s.Value {
			add = append(add, string(s.Flag))
		} else {
			remove = append(remove, string(s.Flag))
		}
	}
	return add, remove
}

// FlagListFromItem builds a flag list from the flag fields modified on item.
func FlagListFromItem(item *MessageItem) *FlagList {
	l := &FlagList{}
	for _, f := range item.Modified() {
		switch f {
		case FieldSeen:
			l.Set(FlagSeen, item.Seen())
		case FieldAnswered:
			l.Set(FlagAnswered, item.Answered())
		case FieldDraft:
			l.Set(FlagDraft, item.Draft())
		case FieldFlagged:
			l.Set(FlagFlagged, item.Flagged())
		case FieldRecent:
			l.Set(FlagRecent, item.Recent())
		}
	}
	return l
}
