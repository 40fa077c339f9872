// Package inivalue formats values the way Ansible reads them back out of an
// INI inventory, where every value is evaluated as a Python literal.
package inivalue

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Bool renders b as True or False.
func Bool(b bool) string {
	if b {
		return "True"
	}
	return "False"
}

// ParseBool accepts the spellings produced by Bool as well as the lower case
// forms found in hand written inventories.
func ParseBool(s string) (bool, error) {
	switch s {
	case "True", "true":
		return true, nil
	case "False", "false":
		return false, nil
	}
	return false, fmt.Errorf("invalid boolean %q", s)
}

// Format renders v as a Python literal. Maps are written with sorted keys.
func Format(v interface{}) string {
	var sb strings.Builder
	write(&sb, v)
	return sb.String()
}

func write(sb *strings.Builder, v interface{}) {
	switch v := v.(type) {
	case nil:
		sb.WriteString("None")
	case bool:
		sb.WriteString(Bool(v))
	case string:
		writeString(sb, v)
	case int:
		sb.WriteString(strconv.Itoa(v))
	case int64:
		sb.WriteString(strconv.FormatInt(v, 10))
	case uint64:
		sb.WriteString(strconv.FormatUint(v, 10))
	case float64:
		sb.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
	case []string:
		sb.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeString(sb, item)
		}
		sb.WriteByte(']')
	case []interface{}:
		sb.WriteByte('[')
		for i, item := range v {
			if i > 0 {
				sb.WriteString(", ")
			}
			write(sb, item)
		}
		sb.WriteByte(']')
	case map[string]interface{}:
		keys := make([]string, 0, len(v))
		for k := range v {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		sb.WriteByte('{')
		for i, k := range keys {
			if i > 0 {
				sb.WriteString(", ")
			}
			writeString(sb, k)
			sb.WriteString(": ")
			write(sb, v[k])
		}
		sb.WriteByte('}')
	default:
		writeString(sb, fmt.Sprint(v))
	}
}

func writeString(sb *strings.Builder, s string) {
	sb.WriteByte('\'')
	sb.WriteString(strings.NewReplacer(`\`, `\\`, `'`, `\'`).Replace(s))
	sb.WriteByte('\'')
}
