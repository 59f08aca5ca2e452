// Copyright (C) 2026 Ben Grimm. Licensed under AGPL-3.0 (https://www.gnu.org/licenses/agpl-3.0.txt)

package errors

import (
	"errors"
	"strings"
	"testing"
)

func TestError(t *testing.T) {
	err := New(KindValidation, "invalid config")
	if err.Error() != "invalid config" {
		t.Errorf("expected 'invalid config', got '%s'", err.Error())
	}

	wrapped := Wrap(err, KindInternal, "failed to load")
	if wrapped.Error() != "failed to load: invalid config" {
		t.Errorf("expected 'failed to load: invalid config', got '%s'", wrapped.Error())
	}
}

func TestGetKind(t *testing.T) {
	err := New(KindProcParse, "bad hex address")
	if GetKind(err) != KindProcParse {
		t.Errorf("expected KindProcParse, got %v", GetKind(err))
	}

	wrapped := Wrap(err, KindProcRead, "read failed")
	if GetKind(wrapped) != KindProcRead {
		t.Errorf("expected KindProcRead, got %v", GetKind(wrapped))
	}

	if GetKind(errors.New("std error")) != KindUnknown {
		t.Errorf("expected KindUnknown, got %v", GetKind(errors.New("std error")))
	}
}

func TestIsKind(t *testing.T) {
	inner := New(KindProcParse, "bad line")
	outer := Wrap(inner, KindProcRead, "reading /proc/net/tcp")

	if !IsKind(outer, KindProcRead) {
		t.Error("expected outer kind to match")
	}
	if !IsKind(outer, KindProcParse) {
		t.Error("expected inner kind to match through the chain")
	}
	if IsKind(outer, KindCapture) {
		t.Error("unexpected kind match")
	}
}

func TestCaptureUnavailable(t *testing.T) {
	err := CaptureUnavailable("./netmon-tui")
	if GetKind(err) != KindCapture {
		t.Errorf("expected KindCapture, got %v", GetKind(err))
	}
	if !strings.Contains(err.Error(), "setcap cap_net_raw") {
		t.Errorf("message must direct the operator to setcap, got %q", err.Error())
	}
}

func TestInterfaceNotFound(t *testing.T) {
	err := InterfaceNotFound("eth9", []string{"eth0", "wlan0"})
	if GetKind(err) != KindNotFound {
		t.Errorf("expected KindNotFound, got %v", GetKind(err))
	}
	if !strings.Contains(err.Error(), "eth0 wlan0") {
		t.Errorf("message must list available interfaces, got %q", err.Error())
	}
}
