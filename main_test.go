package main

import (
	"context"
	"strings"
	"testing"
)

func TestGenerateRejectsOutOfRangeDitherFlags(t *testing.T) {
	testCases := []struct {
		args     []string
		expected string
	}{
		{[]string{"-threshold", "300", "clip.mp4"}, "threshold"},
		{[]string{"-threshold", "-1", "clip.mp4"}, "threshold"},
		{[]string{"-cell", "-3", "clip.mp4"}, "cell size"},
	}
	for _, tC := range testCases {
		err := generateCmd(context.Background(), tC.args)
		if err == nil || !strings.Contains(err.Error(), tC.expected) {
			t.Errorf("%v: expected %q error, got %v", tC.args, tC.expected, err)
		}
	}
}

func TestChannelSetFlag(t *testing.T) {
	var c channelSet
	if err := c.Set("kc"); err != nil {
		t.Fatal(err)
	}
	if actual := c.String(); actual != "ck" {
		t.Errorf("expected declared-order %q, got %q", "ck", actual)
	}
	if err := c.Set("cx"); err == nil {
		t.Error("expected error for unknown channel letter")
	}
}

func TestEffectFlag(t *testing.T) {
	var e effect
	if err := e.Set("floyd-steinberg"); err != nil {
		t.Fatal(err)
	}
	if e.String() != "floyd-steinberg" {
		t.Errorf("unexpected effect %q", e.String())
	}
	if err := e.Set("sparkle"); err == nil {
		t.Error("expected error for unknown effect")
	}
}
