package rule_test

import (
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/usbguard/usbguard/internal/attrset"
	"github.com/usbguard/usbguard/internal/iface"
	"github.com/usbguard/usbguard/internal/rule"
)

var _ = Describe("Rule.Matches", func() {
	It("matches when no attribute is set", func() {
		r := &rule.Rule{Target: rule.Allow}
		dev := fakeDevice{name: "anything"}
		Expect(r.Matches(rule.EvalContext{Device: dev})).To(BeTrue())
	})

	It("matches the bare device-id sugar with a wildcarded product", func() {
		r := &rule.Rule{Target: rule.Block, HasDeviceID: true, DeviceIDValue: mustID("1d6b:*")}
		dev := fakeDevice{id: mustID("1d6b:0002")}
		Expect(r.Matches(rule.EvalContext{Device: dev})).To(BeTrue())
	})

	It("rejects a device-id sugar mismatch", func() {
		r := &rule.Rule{Target: rule.Block, HasDeviceID: true, DeviceIDValue: mustID("1d6b:0002")}
		dev := fakeDevice{id: mustID("1d6b:0003")}
		Expect(r.Matches(rule.EvalContext{Device: dev})).To(BeFalse())
	})

	It("matches the id attribute as a wildcard pattern against the observed id", func() {
		var r rule.Rule
		r.Target = rule.Allow
		r.IDAttr.Append(mustID("1d6b:*"))
		dev := fakeDevice{id: mustID("1d6b:0002")}
		Expect(r.Matches(rule.EvalContext{Device: dev})).To(BeTrue())
	})

	It("requires every set attribute to match, not just one", func() {
		var r rule.Rule
		r.Target = rule.Allow
		r.Name.Append("Flash Drive")
		r.Serial.Append("ABC123")
		dev := fakeDevice{name: "Flash Drive", serial: "DIFFERENT"}
		Expect(r.Matches(rule.EvalContext{Device: dev})).To(BeFalse())
	})

	It("matches with-interface against the observed sequence using AppliesTo", func() {
		var r rule.Rule
		r.Target = rule.Allow
		r.WithInterface.SetOperator(attrset.AllOf)
		r.WithInterface.Append(mustIface("09:00:*"))
		dev := fakeDevice{interfaces: []iface.Type{mustIface("09:00:02")}}
		Expect(r.Matches(rule.EvalContext{Device: dev})).To(BeTrue())
	})

	It("honors a false condition even when every attribute matches", func() {
		r := &rule.Rule{Target: rule.Allow, Conditions: rule.Not(mustCondition("true", ""))}
		dev := fakeDevice{}
		Expect(r.Matches(rule.EvalContext{Device: dev})).To(BeFalse())
	})
})

var _ = Describe("Conditions", func() {
	Describe("fixed conditions", func() {
		It("true always evaluates true", func() {
			c := mustCondition("true", "")
			Expect(c.Evaluate(rule.EvalContext{})).To(BeTrue())
		})

		It("false always evaluates false", func() {
			c := mustCondition("false", "")
			Expect(c.Evaluate(rule.EvalContext{})).To(BeFalse())
		})
	})

	Describe("combinators", func() {
		It("Not negates", func() {
			c := rule.Not(mustCondition("true", ""))
			Expect(c.Evaluate(rule.EvalContext{})).To(BeFalse())
		})

		It("And requires both sides", func() {
			c := rule.And(mustCondition("true", ""), mustCondition("false", ""))
			Expect(c.Evaluate(rule.EvalContext{})).To(BeFalse())
		})

		It("Or requires either side", func() {
			c := rule.Or(mustCondition("true", ""), mustCondition("false", ""))
			Expect(c.Evaluate(rule.EvalContext{})).To(BeTrue())
		})

		It("Group does not alter evaluation", func() {
			c := rule.Group(mustCondition("true", ""))
			Expect(c.Evaluate(rule.EvalContext{})).To(BeTrue())
		})
	})

	Describe("localtime", func() {
		It("matches within a same-day window", func() {
			c, err := rule.ResolveCondition("localtime", "09:00-17:00")
			Expect(err).NotTo(HaveOccurred())
			noon := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
			Expect(c.Evaluate(rule.EvalContext{Now: noon})).To(BeTrue())
		})

		It("does not match outside a same-day window", func() {
			c, err := rule.ResolveCondition("localtime", "09:00-17:00")
			Expect(err).NotTo(HaveOccurred())
			midnight := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
			Expect(c.Evaluate(rule.EvalContext{Now: midnight})).To(BeFalse())
		})

		It("matches a window that wraps past midnight", func() {
			c, err := rule.ResolveCondition("localtime", "22:00-06:00")
			Expect(err).NotTo(HaveOccurred())
			late := time.Date(2026, 1, 1, 23, 30, 0, 0, time.UTC)
			early := time.Date(2026, 1, 1, 3, 0, 0, 0, time.UTC)
			midday := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
			Expect(c.Evaluate(rule.EvalContext{Now: late})).To(BeTrue())
			Expect(c.Evaluate(rule.EvalContext{Now: early})).To(BeTrue())
			Expect(c.Evaluate(rule.EvalContext{Now: midday})).To(BeFalse())
		})

		It("rejects a malformed window", func() {
			_, err := rule.ResolveCondition("localtime", "9am-5pm")
			Expect(err).To(HaveOccurred())
		})
	})

	Describe("allowed-matches", func() {
		It("requires a linked ParseMatchSpec hook", func() {
			saved := rule.ParseMatchSpec
			rule.ParseMatchSpec = nil
			defer func() { rule.ParseMatchSpec = saved }()
			_, err := rule.ResolveCondition("allowed-matches", `name "x"`)
			Expect(err).To(HaveOccurred())
		})

		It("evaluates true when some allowed device matches the spec", func() {
			saved := rule.ParseMatchSpec
			rule.ParseMatchSpec = func(spec string) (*rule.Rule, error) {
				r := &rule.Rule{Target: rule.Match}
				r.Name.Append("Flash Drive")
				return r, nil
			}
			defer func() { rule.ParseMatchSpec = saved }()

			c, err := rule.ResolveCondition("allowed-matches", `name "Flash Drive"`)
			Expect(err).NotTo(HaveOccurred())

			query := fakeQuery{allowed: []rule.Observable{fakeDevice{name: "Flash Drive"}}}
			Expect(c.Evaluate(rule.EvalContext{Query: query})).To(BeTrue())
		})

		It("evaluates false when no allowed device matches", func() {
			saved := rule.ParseMatchSpec
			rule.ParseMatchSpec = func(spec string) (*rule.Rule, error) {
				r := &rule.Rule{Target: rule.Match}
				r.Name.Append("Flash Drive")
				return r, nil
			}
			defer func() { rule.ParseMatchSpec = saved }()

			c, err := rule.ResolveCondition("allowed-matches", `name "Flash Drive"`)
			Expect(err).NotTo(HaveOccurred())

			query := fakeQuery{allowed: []rule.Observable{fakeDevice{name: "Other"}}}
			Expect(c.Evaluate(rule.EvalContext{Query: query})).To(BeFalse())
		})

		It("evaluates false with a nil query", func() {
			saved := rule.ParseMatchSpec
			rule.ParseMatchSpec = func(spec string) (*rule.Rule, error) {
				return &rule.Rule{Target: rule.Match}, nil
			}
			defer func() { rule.ParseMatchSpec = saved }()

			c, err := rule.ResolveCondition("allowed-matches", "")
			Expect(err).NotTo(HaveOccurred())
			Expect(c.Evaluate(rule.EvalContext{})).To(BeFalse())
		})
	})

	It("rejects an unknown condition name", func() {
		_, err := rule.ResolveCondition("nonexistent", "")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Target", func() {
	DescribeTable("Continues",
		func(t rule.Target, want bool) { Expect(t.Continues()).To(Equal(want)) },
		Entry("allow terminates evaluation", rule.Allow, false),
		Entry("block terminates evaluation", rule.Block, false),
		Entry("reject terminates evaluation", rule.Reject, false),
		Entry("match continues evaluation", rule.Match, true),
		Entry("device continues evaluation", rule.Device, true),
	)

	It("parses every known keyword", func() {
		for kw, want := range map[string]rule.Target{
			"allow": rule.Allow, "block": rule.Block, "reject": rule.Reject,
			"match": rule.Match, "device": rule.Device,
		} {
			got, err := rule.ParseTarget(kw)
			Expect(err).NotTo(HaveOccurred())
			Expect(got).To(Equal(want))
		}
	})

	It("rejects an unknown keyword", func() {
		_, err := rule.ParseTarget("maybe")
		Expect(err).To(HaveOccurred())
	})
})

var _ = Describe("Ruleset", func() {
	It("applies the default target when nothing matches", func() {
		rs := rule.NewRuleset(rule.Block)
		target, matched := rs.Evaluate(fakeDevice{}, time.Now(), nil)
		Expect(target).To(Equal(rule.Block))
		Expect(matched).To(BeNil())
	})

	It("returns the first matching rule's target, first-match-wins", func() {
		rs := rule.NewRuleset(rule.Block)

		blockAll := &rule.Rule{Target: rule.Block}
		rs.Append(blockAll)

		allowFlash := &rule.Rule{Target: rule.Allow}
		allowFlash.Name.Append("Flash Drive")
		rs.Append(allowFlash)

		target, matched := rs.Evaluate(fakeDevice{name: "Flash Drive"}, time.Now(), nil)
		Expect(target).To(Equal(rule.Block))
		Expect(matched.ID).To(Equal(blockAll.ID))
	})

	It("skips over a matching rule whose target continues evaluation", func() {
		rs := rule.NewRuleset(rule.Block)

		matchOnly := &rule.Rule{Target: rule.Match}
		matchOnly.Name.Append("Flash Drive")
		rs.Append(matchOnly)

		allow := &rule.Rule{Target: rule.Allow}
		allow.Name.Append("Flash Drive")
		rs.Append(allow)

		target, matched := rs.Evaluate(fakeDevice{name: "Flash Drive"}, time.Now(), nil)
		Expect(target).To(Equal(rule.Allow))
		Expect(matched.ID).To(Equal(allow.ID))
	})

	It("assigns stable increasing IDs on Append", func() {
		rs := rule.NewRuleset(rule.Block)
		id1 := rs.Append(&rule.Rule{Target: rule.Allow})
		id2 := rs.Append(&rule.Rule{Target: rule.Block})
		Expect(id2).To(Equal(id1 + 1))
	})

	It("removes a rule by ID", func() {
		rs := rule.NewRuleset(rule.Block)
		id := rs.Append(&rule.Rule{Target: rule.Allow})
		Expect(rs.RemoveID(id)).To(BeTrue())
		Expect(rs.Rules()).To(BeEmpty())
	})

	It("reports false removing an unknown ID", func() {
		rs := rule.NewRuleset(rule.Block)
		Expect(rs.RemoveID(999)).To(BeFalse())
	})

	It("SetDefaultTarget returns the previous value", func() {
		rs := rule.NewRuleset(rule.Block)
		prev := rs.SetDefaultTarget(rule.Allow)
		Expect(prev).To(Equal(rule.Block))
		Expect(rs.DefaultTarget()).To(Equal(rule.Allow))
	})
})

func mustCondition(name, arg string) rule.ConditionNode {
	c, err := rule.ResolveCondition(name, arg)
	if err != nil {
		panic(err)
	}
	return c
}
