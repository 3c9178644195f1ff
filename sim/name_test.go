package sim

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("Name", func() {
	It("should parse name", func() {
		name, err := ParseName("Bus.ECU[0].TxBuf")
		Expect(err).NotTo(HaveOccurred())
		Expect(name.Tokens).To(HaveLen(3))
		Expect(name.Tokens[1].ElemName).To(Equal("ECU"))
		Expect(name.Tokens[1].Index).To(Equal([]int{0}))
		Expect(name.Tokens[2].ElemName).To(Equal("TxBuf"))
	})

	It("should parse multi-dimensional index", func() {
		name, err := ParseName("Node[0][1]")
		Expect(err).NotTo(HaveOccurred())
		Expect(name.Tokens[0].Index).To(Equal([]int{0, 1}))
	})

	It("should accept single letter node names", func() {
		Expect(ValidateName("A")).To(Succeed())
		Expect(ValidateName("A.Datalink.RxBuf")).To(Succeed())
	})

	DescribeTable("invalid names",
		func(name string) {
			Expect(ValidateName(name)).NotTo(Succeed())
			Expect(func() { NameMustBeValid(name) }).To(Panic())
		},
		Entry("empty", ""),
		Entry("underscore", "ECU_0"),
		Entry("dash", "ECU-0"),
		Entry("lower case", "ecu0"),
		Entry("open bracket", "ECU[0"),
		Entry("close bracket", "ECU0]"),
		Entry("empty element", "ECU..Buf"),
		Entry("trailing dot", "ECU."),
		Entry("non integer index", "ECU[a]"),
	)

	It("should build name", func() {
		Expect(BuildName("", "ECU1")).To(Equal("ECU1"))
		Expect(BuildName("ECU1", "Datalink")).To(Equal("ECU1.Datalink"))
	})

	It("should build name with index", func() {
		Expect(BuildNameWithIndex("", "ECU", 0)).To(Equal("ECU[0]"))
		Expect(BuildNameWithIndex("Bus", "Port", 2)).To(Equal("Bus.Port[2]"))
	})
})
