package admission

import "testing"

func TestEvaluateBlocksTodoWrite(t *testing.T) {
	d := Evaluate("TodoWrite", "some reasonably long todo content here")
	if d.Admit {
		t.Fatal("TodoWrite should never be admitted")
	}
}

func TestEvaluateRejectsShortContent(t *testing.T) {
	d := Evaluate("Bash", "ok")
	if d.Admit {
		t.Fatal("short content should be rejected")
	}
}

func TestEvaluateRejectsNavigationNoise(t *testing.T) {
	d := Evaluate("Bash", "ls -la /some/long/enough/path/to/pass/length/check")
	if d.Admit {
		t.Fatal("navigation command should be rejected")
	}
}

func TestEvaluateAdmitsRealWork(t *testing.T) {
	d := Evaluate("Bash", "go build ./... && go test ./internal/... -run TestFoo -v")
	if !d.Admit {
		t.Fatalf("expected admission, got reason %q", d.Reason)
	}
}

func TestEvaluateRejectsOversizedDump(t *testing.T) {
	big := make([]byte, maxDumpLength+1)
	for i := range big {
		big[i] = 'a'
	}
	d := Evaluate("Read", string(big))
	if d.Admit {
		t.Fatal("oversized content should be rejected")
	}
}
