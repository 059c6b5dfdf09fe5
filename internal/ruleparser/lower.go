package ruleparser

import (
	"fmt"

	"github.com/usbguard/usbguard/internal/attrset"
	"github.com/usbguard/usbguard/internal/iface"
	"github.com/usbguard/usbguard/internal/rule"
	"github.com/usbguard/usbguard/internal/usbid"
)

// lower performs the deterministic AST -> Rule pass: it enforces the
// duplicate-attribute and operator-arity invariants and resolves every
// value literal into its typed form, moving all semantic errors to this
// one place.
func lower(ast *ruleAST) (*rule.Rule, error) {
	target, err := rule.ParseTarget(ast.target.text)
	if err != nil {
		return nil, newParseError(ast.target.line, ast.target.column, err)
	}

	r := &rule.Rule{Target: target}

	if ast.deviceID != nil {
		id, err := usbid.Parse(ast.deviceID.text)
		if err != nil {
			return nil, newParseError(ast.deviceID.line, ast.deviceID.col, fmt.Errorf("%w: %v", errMalformedID, err))
		}
		r.HasDeviceID = true
		r.DeviceIDValue = id
	}

	seen := make(map[string]bool)
	for _, attr := range ast.attrs {
		name := attr.name.text
		if seen[name] {
			return nil, newParseError(attr.name.line, attr.name.column, fmt.Errorf("%w: %q", errDuplicateAttribute, name))
		}
		seen[name] = true

		var lowerErr error
		switch name {
		case "name":
			lowerErr = lowerStringAttr(attr, &r.Name)
		case "hash":
			lowerErr = lowerStringAttr(attr, &r.Hash)
		case "parent-hash":
			lowerErr = lowerStringAttr(attr, &r.ParentHash)
		case "serial":
			lowerErr = lowerStringAttr(attr, &r.Serial)
		case "via-port":
			lowerErr = lowerStringAttr(attr, &r.ViaPort)
		case "with-interface":
			lowerErr = lowerInterfaceAttr(attr, &r.WithInterface)
		case "id":
			lowerErr = lowerIDAttr(attr, &r.IDAttr)
		}
		if lowerErr != nil {
			return nil, lowerErr
		}
	}

	if ast.condition != nil {
		cond, err := lowerExpr(ast.condition)
		if err != nil {
			return nil, err
		}
		r.Conditions = cond
	}

	return r, nil
}

func operatorOf(attr attrNode) (attrset.Operator, bool) {
	if attr.operator == nil {
		return attrset.Equals, false
	}
	op, _ := attrset.ParseOperator(attr.operator.text)
	return op, true
}

func lowerStringAttr(attr attrNode, set *attrset.Set[string]) error {
	op, explicit := operatorOf(attr)
	if explicit {
		set.SetOperator(op)
	}
	for _, v := range attr.values {
		set.Append(v.text)
	}
	return set.Validate()
}

func lowerInterfaceAttr(attr attrNode, set *attrset.Set[iface.Type]) error {
	op, explicit := operatorOf(attr)
	if explicit {
		set.SetOperator(op)
	}
	for _, v := range attr.values {
		t, err := iface.Parse(v.text)
		if err != nil {
			return newParseError(v.line, v.col, fmt.Errorf("%w: %v", errMalformedInterface, err))
		}
		set.Append(t)
	}
	return set.Validate()
}

func lowerIDAttr(attr attrNode, set *attrset.Set[usbid.ID]) error {
	op, explicit := operatorOf(attr)
	if explicit {
		set.SetOperator(op)
	}
	for _, v := range attr.values {
		id, err := usbid.Parse(v.text)
		if err != nil {
			return newParseError(v.line, v.col, fmt.Errorf("%w: %v", errMalformedID, err))
		}
		set.Append(id)
	}
	return set.Validate()
}

func lowerExpr(n *exprNode) (rule.ConditionNode, error) {
	switch n.kind {
	case exprLeaf:
		cond, err := rule.ResolveCondition(n.name.text, n.arg)
		if err != nil {
			return nil, newParseError(n.name.line, n.name.column, err)
		}
		return cond, nil
	case exprNot:
		inner, err := lowerExpr(n.child)
		if err != nil {
			return nil, err
		}
		return rule.Not(inner), nil
	case exprGroup:
		inner, err := lowerExpr(n.child)
		if err != nil {
			return nil, err
		}
		return rule.Group(inner), nil
	case exprAnd:
		left, err := lowerExpr(n.left)
		if err != nil {
			return nil, err
		}
		right, err := lowerExpr(n.right)
		if err != nil {
			return nil, err
		}
		return rule.And(left, right), nil
	case exprOr:
		left, err := lowerExpr(n.left)
		if err != nil {
			return nil, err
		}
		right, err := lowerExpr(n.right)
		if err != nil {
			return nil, err
		}
		return rule.Or(left, right), nil
	default:
		return nil, fmt.Errorf("ruleparser: unreachable expr kind %d", n.kind)
	}
}
