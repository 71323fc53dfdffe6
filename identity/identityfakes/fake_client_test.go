package identityfakes_test

import (
	"sync"
	"testing"

	"github.com/tradevault/go-auth-client/identity"
	"github.com/tradevault/go-auth-client/identity/identityfakes"
)

func TestEmit_ConcurrentWithUnsubscribe(t *testing.T) {
	fake := identityfakes.NewFakeClient()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		sub := fake.Subscribe()
		wg.Add(2)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				fake.Emit(identity.Event{Type: identity.EventSignedOut})
			}
		}()
		go func() {
			defer wg.Done()
			sub.Unsubscribe()
		}()
	}
	wg.Wait()
}
