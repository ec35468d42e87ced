// Copyright (C) 2026 The FlowEngine Authors
// SPDX-License-Identifier: GPL-3.0-or-later

package connector

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ApplyRules rewrites each row in rows by applying mapping's rules in
// order: for each rule, read sourceField, apply transform, write
// targetField. Fields not named by any rule pass through unchanged.
func ApplyRules(rows []map[string]any, mapping FieldMapping) ([]map[string]any, []string) {
	out := make([]map[string]any, len(rows))
	var warnings []string

	for i, row := range rows {
		mapped := make(map[string]any, len(row))
		for k, v := range row {
			mapped[k] = v
		}
		for _, rule := range mapping.Rules {
			value, ok := row[rule.SourceField]
			if !ok {
				continue
			}
			converted, err := applyTransform(rule.Transform, rule.Param, value)
			if err != nil {
				warnings = append(warnings, fmt.Sprintf("row %d: %s: %v", i, rule.SourceField, err))
				continue
			}
			delete(mapped, rule.SourceField)
			mapped[rule.TargetField] = converted
		}
		out[i] = mapped
	}

	return out, warnings
}

func applyTransform(t Transform, param string, value any) (any, error) {
	switch t {
	case TransformDirect, "":
		return value, nil
	case TransformUppercase:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("uppercase requires a string, got %T", value)
		}
		return strings.ToUpper(s), nil
	case TransformLowercase:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("lowercase requires a string, got %T", value)
		}
		return strings.ToLower(s), nil
	case TransformStringToNumber:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("string-to-number requires a string, got %T", value)
		}
		return strconv.ParseFloat(s, 64)
	case TransformNumberToString:
		return fmt.Sprintf("%v", value), nil
	case TransformBooleanToString:
		b, ok := value.(bool)
		if !ok {
			return nil, fmt.Errorf("boolean-to-string requires a bool, got %T", value)
		}
		return strconv.FormatBool(b), nil
	case TransformJSONStringify:
		raw, err := json.Marshal(value)
		if err != nil {
			return nil, err
		}
		return string(raw), nil
	case TransformJSONParse:
		s, ok := value.(string)
		if !ok {
			return nil, fmt.Errorf("json-parse requires a string, got %T", value)
		}
		var parsed any
		if err := json.Unmarshal([]byte(s), &parsed); err != nil {
			return nil, err
		}
		return parsed, nil
	case TransformDateFormat:
		layout := param
		if layout == "" {
			layout = time.RFC3339
		}
		switch v := value.(type) {
		case time.Time:
			return v.Format(layout), nil
		case string:
			parsed, err := time.Parse(time.RFC3339, v)
			if err != nil {
				return nil, err
			}
			return parsed.Format(layout), nil
		default:
			return nil, fmt.Errorf("date-format requires a time or RFC3339 string, got %T", value)
		}
	case TransformNumberFormat:
		precision := 2
		if param != "" {
			if p, err := strconv.Atoi(param); err == nil {
				precision = p
			}
		}
		f, err := toFloat(value)
		if err != nil {
			return nil, err
		}
		return strconv.FormatFloat(f, 'f', precision, 64), nil
	default:
		return nil, fmt.Errorf("unknown transform %q", t)
	}
}

func toFloat(value any) (float64, error) {
	switch v := value.(type) {
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case string:
		return strconv.ParseFloat(v, 64)
	default:
		return 0, fmt.Errorf("cannot convert %T to number", value)
	}
}
