package core

import (
	"fmt"
	"sort"
	"strings"
)

// compileFilter translates a metadata predicate into a boolean SQL
// expression over the JSON metadata column. Scalar values compile to
// equality tests on json_extract, slices to IN membership tests, keys are
// conjoined with AND. An empty predicate compiles to "1=1" — never to an
// empty string, which would be syntactically invalid.
//
// JSON paths and values are bound parameters; nothing caller-controlled is
// interpolated into the expression text.
func compileFilter(filter Filter, qualifier string) (string, []any, error) {
	if len(filter) == 0 {
		return "1=1", nil, nil
	}

	column := "metadata"
	if qualifier != "" {
		column = qualifier + ".metadata"
	}

	// Deterministic clause order keeps prepared-statement text stable.
	keys := make([]string, 0, len(filter))
	for k := range filter {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var clauses []string
	var args []any
	for _, key := range keys {
		if key == "" || strings.ContainsAny(key, `"`) {
			return "", nil, fmt.Errorf("%w: invalid key %q", ErrFilter, key)
		}
		path := `$."` + key + `"`

		switch v := filter[key].(type) {
		case []any:
			clause, inArgs, err := membershipClause(column, path, key, v)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, clause)
			args = append(args, inArgs...)
		case []string:
			vals := make([]any, len(v))
			for i, s := range v {
				vals[i] = s
			}
			clause, inArgs, err := membershipClause(column, path, key, vals)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, clause)
			args = append(args, inArgs...)
		default:
			arg, err := scalarArg(key, v)
			if err != nil {
				return "", nil, err
			}
			clauses = append(clauses, fmt.Sprintf("json_extract(%s, ?) = ?", column))
			args = append(args, path, arg)
		}
	}

	return strings.Join(clauses, " AND "), args, nil
}

func membershipClause(column, path, key string, values []any) (string, []any, error) {
	if len(values) == 0 {
		return "", nil, fmt.Errorf("%w: empty value list for key %q", ErrFilter, key)
	}

	args := make([]any, 0, len(values)+1)
	args = append(args, path)
	placeholders := make([]string, len(values))
	for i, v := range values {
		arg, err := scalarArg(key, v)
		if err != nil {
			return "", nil, err
		}
		placeholders[i] = "?"
		args = append(args, arg)
	}

	clause := fmt.Sprintf("json_extract(%s, ?) IN (%s)", column, strings.Join(placeholders, ","))
	return clause, args, nil
}

// scalarArg converts a predicate value to a bindable argument. json_extract
// yields TEXT for strings, INTEGER/REAL for numbers and 1/0 for booleans,
// so the natural driver conversions line up.
func scalarArg(key string, v any) (any, error) {
	switch val := v.(type) {
	case string:
		return val, nil
	case bool:
		if val {
			return 1, nil
		}
		return 0, nil
	case int:
		return val, nil
	case int32:
		return int(val), nil
	case int64:
		return val, nil
	case float32:
		return float64(val), nil
	case float64:
		return val, nil
	default:
		return nil, fmt.Errorf("%w: unsupported value type %T for key %q", ErrFilter, v, key)
	}
}
