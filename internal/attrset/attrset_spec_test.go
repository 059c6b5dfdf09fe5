package attrset_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/usbguard/usbguard/internal/attrset"
)

func equalStrings(a, b string) bool { return a == b }
func appliesStrings(a, b string) bool { return a == b }

var _ = Describe("Set", func() {
	Describe("an unset attribute", func() {
		It("is not IsSet", func() {
			var s attrset.Set[string]
			Expect(s.IsSet()).To(BeFalse())
		})

		It("matches any scalar value", func() {
			var s attrset.Set[string]
			Expect(s.MatchScalar(equalStrings, "anything")).To(BeTrue())
		})

		It("matches any sequence", func() {
			var s attrset.Set[string]
			Expect(s.MatchSequence(appliesStrings, equalStrings, []string{"a", "b"})).To(BeTrue())
		})
	})

	Describe("Append", func() {
		It("defaults the operator to Equals on the first append", func() {
			var s attrset.Set[string]
			s.Append("hello")
			Expect(s.IsSet()).To(BeTrue())
			Expect(s.Operator()).To(Equal(attrset.Equals))
			Expect(s.Values()).To(Equal([]string{"hello"}))
		})
	})

	Describe("Validate", func() {
		It("rejects equals with zero values", func() {
			var s attrset.Set[string]
			s.SetOperator(attrset.Equals)
			Expect(s.Validate()).To(HaveOccurred())
		})

		It("rejects equals with more than one value", func() {
			var s attrset.Set[string]
			s.SetOperator(attrset.Equals)
			s.Append("a")
			s.Append("b")
			Expect(s.Validate()).To(HaveOccurred())
		})

		It("rejects match-any with any values", func() {
			var s attrset.Set[string]
			s.SetOperator(attrset.MatchAny)
			s.Append("a")
			Expect(s.Validate()).To(HaveOccurred())
		})

		It("accepts match-any with zero values", func() {
			var s attrset.Set[string]
			s.SetOperator(attrset.MatchAny)
			Expect(s.Validate()).NotTo(HaveOccurred())
		})

		It("accepts one-of with any positive count", func() {
			var s attrset.Set[string]
			s.SetOperator(attrset.OneOf)
			s.Append("a")
			s.Append("b")
			Expect(s.Validate()).NotTo(HaveOccurred())
		})
	})

	DescribeTable("MatchScalar operator semantics",
		func(op attrset.Operator, values []string, observed string, want bool) {
			var s attrset.Set[string]
			s.SetOperator(op)
			for _, v := range values {
				s.Append(v)
			}
			Expect(s.MatchScalar(equalStrings, observed)).To(Equal(want))
		},
		Entry("equals matches the single declared value", attrset.Equals, []string{"a"}, "a", true),
		Entry("equals rejects a different value", attrset.Equals, []string{"a"}, "b", false),
		Entry("one-of matches any declared value", attrset.OneOf, []string{"a", "b"}, "b", true),
		Entry("one-of rejects a value outside the set", attrset.OneOf, []string{"a", "b"}, "c", false),
		Entry("none-of matches a value outside the set", attrset.NoneOf, []string{"a", "b"}, "c", true),
		Entry("none-of rejects a declared value", attrset.NoneOf, []string{"a", "b"}, "a", false),
		Entry("all-of requires every declared value to equal observed, so a multi-value set never matches a scalar", attrset.AllOf, []string{"a", "b"}, "a", false),
		Entry("all-of with a single value behaves like equals", attrset.AllOf, []string{"a"}, "a", true),
	)

	Describe("MatchSequence", func() {
		It("one-of requires at least one declared pattern to apply to some observed element", func() {
			var s attrset.Set[string]
			s.SetOperator(attrset.OneOf)
			s.Append("x")
			Expect(s.MatchSequence(appliesStrings, equalStrings, []string{"y", "x"})).To(BeTrue())
		})

		It("one-of with no applying pattern fails, not vacuously succeeds", func() {
			var s attrset.Set[string]
			s.SetOperator(attrset.OneOf)
			s.Append("x")
			Expect(s.MatchSequence(appliesStrings, equalStrings, []string{"y", "z"})).To(BeFalse())
		})

		It("all-of requires every declared pattern to apply to some observed element", func() {
			var s attrset.Set[string]
			s.SetOperator(attrset.AllOf)
			s.Append("x")
			s.Append("y")
			Expect(s.MatchSequence(appliesStrings, equalStrings, []string{"x", "y", "z"})).To(BeTrue())
		})

		It("all-of fails when one declared pattern has no applying observed element", func() {
			var s attrset.Set[string]
			s.SetOperator(attrset.AllOf)
			s.Append("x")
			s.Append("w")
			Expect(s.MatchSequence(appliesStrings, equalStrings, []string{"x", "y", "z"})).To(BeFalse())
		})

		It("none-of fails when any declared pattern applies", func() {
			var s attrset.Set[string]
			s.SetOperator(attrset.NoneOf)
			s.Append("x")
			Expect(s.MatchSequence(appliesStrings, equalStrings, []string{"x", "y"})).To(BeFalse())
		})

		It("equals compares as a multiset irrespective of order", func() {
			var s attrset.Set[string]
			s.SetOperator(attrset.Equals)
			s.Append("a")
			s.Append("b")
			Expect(s.MatchSequence(appliesStrings, equalStrings, []string{"b", "a"})).To(BeTrue())
		})

		It("equals-ordered compares position by position", func() {
			var s attrset.Set[string]
			s.SetOperator(attrset.EqualsOrdered)
			s.Append("a")
			s.Append("b")
			Expect(s.MatchSequence(appliesStrings, equalStrings, []string{"b", "a"})).To(BeFalse())
			Expect(s.MatchSequence(appliesStrings, equalStrings, []string{"a", "b"})).To(BeTrue())
		})
	})
})

var _ = Describe("ParseOperator", func() {
	It("round-trips every known operator keyword", func() {
		for _, kw := range []string{"equals", "one-of", "none-of", "all-of", "match-any", "equals-ordered"} {
			op, err := attrset.ParseOperator(kw)
			Expect(err).NotTo(HaveOccurred())
			Expect(op.String()).To(Equal(kw))
		}
	})

	It("rejects an unknown keyword", func() {
		_, err := attrset.ParseOperator("sorta-like")
		Expect(err).To(HaveOccurred())
	})
})
