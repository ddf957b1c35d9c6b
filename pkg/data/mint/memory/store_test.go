package memory

import (
	"testing"

	"github.com/tunegate/tunegate-server/pkg/data/mint/tests"
)

func TestMintMemoryStore(t *testing.T) {
	testStore := New()
	teardown := func() {
		testStore.(*store).reset()
	}
	tests.RunTests(t, testStore, teardown)
}
