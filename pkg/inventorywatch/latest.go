package inventorywatch

// Latest relays values from in to the returned channel without ever blocking
// the sender. A value still waiting when a newer one arrives is dropped, so
// readers only see the most recent update. The output closes once in closes.
func Latest[T any](in <-chan T) <-chan T {
	out := make(chan T)

	go func() {
		defer close(out)

		var pending T
		// nil until there is something to hand out
		var send chan<- T
		for {
			select {
			case value, ok := <-in:
				if !ok {
					return
				}
				pending = value
				send = out
			case send <- pending:
				send = nil
			}
		}
	}()

	return out
}
