package shmregion

import (
	"github.com/shmsubstrate/core/internal/serr"
	"github.com/shmsubstrate/core/internal/unsafehelpers"
)

// globalLenWord returns the one-shot broadcast slot's length header: 0
// means empty, otherwise the blob's byte length (spec.md §3 "Global
// storage slot").
func (r *Region) globalLenWord() *uint64 {
	return unsafehelpers.Uint64At(r.base, uintptr(r.layout.GlobalOffset))
}

func (r *Region) globalBlob(length uint64) []byte {
	return unsafehelpers.ByteSliceFrom(r.base, uintptr(r.layout.GlobalOffset)+8)[:length]
}

// GlobalStore publishes b to the broadcast slot. Master-only; requires the
// slot currently empty and b to be strictly smaller than global_bytes
// (spec.md §4.2: "payload size < global capacity − one header word";
// hh_shared.c:1191 asserts the same strict bound, counting its header word
// against capacity — this layout already carves the header word out of
// GlobalBytes, so the bound here is simply len(b) < GlobalBytes).
func (r *Region) GlobalStore(b []byte) error {
	if err := r.requireMaster("GlobalStore"); err != nil {
		return err
	}
	if *r.globalLenWord() != 0 {
		return serr.New(serr.KindContract, "GlobalStore", "global storage slot is not empty")
	}
	if uint64(len(b)) >= r.layout.GlobalBytes {
		return serr.New(serr.KindResource, "GlobalStore", "payload exceeds global_bytes capacity")
	}
	copy(r.globalBlob(uint64(len(b))), b)
	*r.globalLenWord() = uint64(len(b))
	return nil
}

// GlobalLoad reads the broadcast slot. Any process; requires non-empty.
func (r *Region) GlobalLoad() ([]byte, error) {
	length := *r.globalLenWord()
	if length == 0 {
		return nil, serr.New(serr.KindContract, "GlobalLoad", "global storage slot is empty")
	}
	out := make([]byte, length)
	copy(out, r.globalBlob(length))
	return out, nil
}

// GlobalClear empties the broadcast slot. Master-only.
func (r *Region) GlobalClear() error {
	if err := r.requireMaster("GlobalClear"); err != nil {
		return err
	}
	*r.globalLenWord() = 0
	return nil
}
