package ruleparser

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/usbguard/usbguard/internal/rule"
)

func init() {
	// Let allowed-matches(...) conditions parse their sub-spec through this
	// same grammar without internal/rule importing internal/ruleparser.
	rule.ParseMatchSpec = ParseMatchSpec
}

// Parse parses a single rule line into a *rule.Rule, not yet attached to
// any Ruleset (its ID is zero).
func Parse(line string) (*rule.Rule, error) {
	ast, err := parseRuleAST(line)
	if err != nil {
		return nil, err
	}
	return lower(ast)
}

// ParseMatchSpec parses a bare attribute-clause spec with no leading
// target, as used by allowed-matches(...) condition arguments. It is
// implemented by prefixing an implicit "match" target and reusing Parse.
func ParseMatchSpec(spec string) (*rule.Rule, error) {
	return Parse("match " + strings.TrimSpace(spec))
}

// ParseRuleset reads ruleset text, one rule per non-empty, non-#-comment
// line, into a new Ruleset with the given default target. On the first
// parse error, it returns nil and that error wrapped with the 1-based line
// number.
func ParseRuleset(text string, defaultTarget rule.Target) (*rule.Ruleset, error) {
	rs := rule.NewRuleset(defaultTarget)
	scanner := bufio.NewScanner(strings.NewReader(text))
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		r, err := Parse(line)
		if err != nil {
			return nil, fmt.Errorf("ruleset line %d: %w", lineNo, err)
		}
		rs.Append(r)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ruleset: %w", err)
	}
	return rs, nil
}
