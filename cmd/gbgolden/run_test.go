package main

import (
	"fmt"
	"strings"
	"testing"
)

func TestLineRing_KeepsLastLines(t *testing.T) {
	r := newLineRing(3)
	for i := 0; i < 5; i++ {
		fmt.Fprintf(r, "line %d\n", i)
	}
	// a partial line is held back until its newline arrives
	r.Write([]byte("line 5"))
	got := strings.Join(r.Lines(), ",")
	if got != "line 2,line 3,line 4" {
		t.Fatalf("got %q", got)
	}
	r.Write([]byte("\n"))
	if got := strings.Join(r.Lines(), ","); got != "line 3,line 4,line 5" {
		t.Fatalf("got %q", got)
	}
}

func TestLineRing_NotFull(t *testing.T) {
	r := newLineRing(4)
	r.Write([]byte("a\nb\n"))
	if got := strings.Join(r.Lines(), ","); got != "a,b" {
		t.Fatalf("got %q", got)
	}
}

func TestStageRe(t *testing.T) {
	mm := stageRe.FindAllString("01:ok 02:ok 11:01\n", -1)
	if len(mm) == 0 || mm[len(mm)-1] != "11:01" {
		t.Fatalf("got %v", mm)
	}
}
