package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"unicode"
)

type HelpSchema struct {
	Name        string          `json:"name"`
	Version     string          `json:"version"`
	Description string          `json:"description"`
	Commands    []CommandSchema `json:"commands"`
	GlobalFlags []FlagSchema    `json:"global_flags"`
}

type CommandSchema struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Flags       []FlagSchema    `json:"flags,omitempty"`
	Args        []ArgSchema     `json:"args,omitempty"`
	Subcommands []CommandSchema `json:"subcommands,omitempty"`
	Examples    []string        `json:"examples,omitempty"`
}

type FlagSchema struct {
	Name        string `json:"name"`
	Short       string `json:"short,omitempty"`
	Type        string `json:"type"`
	Default     string `json:"default,omitempty"`
	Required    bool   `json:"required,omitempty"`
	Description string `json:"description"`
}

type ArgSchema struct {
	Name        string `json:"name"`
	Type        string `json:"type"`
	Required    bool   `json:"required"`
	Description string `json:"description"`
}

const description = "JSON:API gateway for IMAP/SMTP mail accounts"

var examples = map[string][]string{
	"serve": {
		"mailgate serve",
		"mailgate serve --addr :8080 --origin http://localhost:3000",
	},
	"validate": {
		"mailgate validate MessageItem 'include=MessageBody&sort=-date&limit=10'",
		"mailgate validate MessageBody 'fields[MessageBody]=textPlain' --single",
	},
	"folders": {"mailgate folders work", "mailgate folders work --no-counts --json"},
	"messages": {
		"mailgate messages work",
		"mailgate messages work Archive/2024 -n 50 --sort subject",
		`mailgate messages work -f '{"=":{"subject":"invoice"}}' --preview`,
	},
	"config init":     {"mailgate config init"},
	"config show":     {"mailgate config show", "mailgate config show --json"},
	"config password": {"mailgate config password work", "mailgate config password work --delete"},
	"config path":     {"mailgate config path"},
	"config doctor":   {"mailgate config doctor", "mailgate config doctor --json"},
	"version":         {"mailgate version", "mailgate version --json"},
}

// GenerateHelpJSON describes the commands of cli from their kong tags.
func GenerateHelpJSON(cli *CLI) ([]byte, error) {
	t := reflect.TypeOf(*cli)
	globals, _ := extractFieldsFromStruct(reflect.TypeOf(cli.Globals))
	schema := HelpSchema{
		Name:        "mailgate",
		Version:     Version,
		Description: description,
		GlobalFlags: globals,
		Commands:    extractCommands(t, ""),
	}
	return json.MarshalIndent(schema, "", "  ")
}

func extractCommands(t reflect.Type, parent string) []CommandSchema {
	var out []CommandSchema
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if _, ok := field.Tag.Lookup("cmd"); !ok {
			continue
		}
		name := kebab(field.Name)
		if parent != "" {
			name = parent + " " + name
		}
		flags, args := extractFieldsFromStruct(field.Type)
		out = append(out, CommandSchema{
			Name:        name,
			Description: field.Tag.Get("help"),
			Flags:       flags,
			Args:        args,
			Subcommands: extractCommands(field.Type, name),
			Examples:    examples[name],
		})
	}
	return out
}

// extractFieldsFromStruct reads flags and positional arguments from the kong
// tags of a command struct.
func extractFieldsFromStruct(t reflect.Type) ([]FlagSchema, []ArgSchema) {
	var (
		flags []FlagSchema
		args  []ArgSchema
	)
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		if field.Anonymous || !field.IsExported() {
			continue
		}
		if _, ok := field.Tag.Lookup("cmd"); ok {
			continue
		}
		help := field.Tag.Get("help")
		if help == "" {
			continue
		}

		if _, ok := field.Tag.Lookup("arg"); ok {
			_, optional := field.Tag.Lookup("optional")
			args = append(args, ArgSchema{
				Name:        kebab(field.Name),
				Type:        getTypeString(field.Type),
				Required:    !optional,
				Description: help,
			})
			continue
		}

		name := kebab(field.Name)
		if tag := field.Tag.Get("name"); tag != "" {
			name = tag
		}
		flag := FlagSchema{
			Name:        "--" + name,
			Type:        getTypeString(field.Type),
			Default:     field.Tag.Get("default"),
			Description: help,
		}
		if _, ok := field.Tag.Lookup("required"); ok {
			flag.Required = true
		}
		if short := field.Tag.Get("short"); short != "" {
			flag.Short = "-" + short
		}
		flags = append(flags, flag)
	}
	return flags, args
}

// kebab converts a Go field name the way kong names flags.
func kebab(s string) string {
	var b strings.Builder
	runes := []rune(s)
	for i, r := range runes {
		if unicode.IsUpper(r) {
			if i > 0 && (unicode.IsLower(runes[i-1]) || (i+1 < len(runes) && unicode.IsLower(runes[i+1]))) {
				b.WriteByte('-')
			}
			r = unicode.ToLower(r)
		}
		b.WriteRune(r)
	}
	return b.String()
}

func getTypeString(t reflect.Type) string {
	switch t.Kind() {
	case reflect.String:
		return "string"
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return "int"
	case reflect.Bool:
		return "bool"
	case reflect.Slice:
		return "[]" + getTypeString(t.Elem())
	default:
		return t.String()
	}
}

func PrintHelpJSON(w io.Writer, cli *CLI) error {
	data, err := GenerateHelpJSON(cli)
	if err != nil {
		return fmt.Errorf("failed to generate help JSON: %w", err)
	}
	fmt.Fprintln(w, string(data))
	return nil
}
