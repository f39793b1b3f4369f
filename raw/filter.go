package raw

import (
	"github.com/irai/beacon"
	"golang.org/x/net/bpf"
)

// snapLen is the number of bytes kept from an accepted frame.
const snapLen = 0x40000

// beaconFilter returns a classic BPF program accepting only frames with the
// beacon ethertype. It is attached before bind() so no foreign frame is queued
// in the window between socket() and bind().
func beaconFilter() ([]bpf.RawInstruction, error) {
	return bpf.Assemble([]bpf.Instruction{
		// skb->protocol in host order
		bpf.LoadExtension{Num: bpf.ExtProto},
		bpf.JumpIf{Cond: bpf.JumpNotEqual, Val: beacon.EthTypeBeacon, SkipTrue: 1},
		bpf.RetConstant{Val: snapLen},
		bpf.RetConstant{Val: 0},
	})
}
