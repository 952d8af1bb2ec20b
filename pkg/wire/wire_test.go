package wire

import (
    "bytes"
    "testing"
)

type jamFixture struct {
    Name string
    Nums []uint32
}

func TestJamCueRoundtrip(t *testing.T) {
    in := jamFixture{Name: "plea", Nums: []uint32{1, 2, 3}}
    b, err := Jam(in)
    if err != nil { t.Fatalf("jam: %v", err) }
    var out jamFixture
    if err := Cue(b, &out); err != nil { t.Fatalf("cue: %v", err) }
    if out.Name != in.Name || len(out.Nums) != len(in.Nums) {
        t.Fatalf("roundtrip mismatch: %#v vs %#v", out, in)
    }
}

func TestJamIsCanonical(t *testing.T) {
    a, err := Jam(jamFixture{Name: "x", Nums: []uint32{9}})
    if err != nil { t.Fatalf("jam: %v", err) }
    b, err := Jam(jamFixture{Name: "x", Nums: []uint32{9}})
    if err != nil { t.Fatalf("jam: %v", err) }
    if !bytes.Equal(a, b) {
        t.Fatalf("identical values jammed to different bytes: %x vs %x", a, b)
    }
}

func TestNumFragments(t *testing.T) {
    cases := []struct {
        blobLen int
        want    int
    }{
        {0, 1},
        {1, 1},
        {FragmentSize, 1},
        {FragmentSize + 1, 2},
        {FragmentSize * 3, 3},
    }
    for _, c := range cases {
        if got := NumFragments(c.blobLen); got != c.want {
            t.Fatalf("NumFragments(%d) = %d, want %d", c.blobLen, got, c.want)
        }
    }
}

func TestFragmentBytesAndReassemble(t *testing.T) {
    blob := make([]byte, FragmentSize*2+10)
    for i := range blob { blob[i] = byte(i) }

    n := NumFragments(len(blob))
    var frags [][]byte
    for i := 0; i < n; i++ {
        f := FragmentBytes(blob, i)
        if f == nil { t.Fatalf("fragment %d unexpectedly nil", i) }
        frags = append(frags, f)
    }
    if FragmentBytes(blob, n) != nil {
        t.Fatalf("fragment past the end should be nil")
    }

    got := Reassemble(frags)
    if !bytes.Equal(got, blob) {
        t.Fatalf("reassembled blob does not match original")
    }
}

func TestFragmentBytesEmptyBlob(t *testing.T) {
    if f := FragmentBytes(nil, 0); len(f) != 0 {
        t.Fatalf("fragment 0 of an empty blob should be empty, got %d bytes", len(f))
    }
}
