package insts_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/sarchlab/pipetrace/insts"
)

var _ = Describe("Insts Package", func() {
	It("should have an Instruction type", func() {
		var i insts.Instruction
		Expect(i).To(BeZero())
	})

	It("should have a Decoder type", func() {
		decoder := insts.NewDecoder()
		Expect(decoder).ToNot(BeNil())
	})

	It("should agree between the Decoder and the package-level Decode", func() {
		decoder := insts.NewDecoder()
		for _, word := range []uint32{0, 0x13, 0x003100B3, 0xFFF00293, 0xFFDFF06F, 0xFFFFFFFF} {
			Expect(*decoder.Decode(word)).To(Equal(insts.Decode(word)))
		}
	})
})
