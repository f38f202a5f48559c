/*
Package framebuffer hands decoded frames from any number of ingestion
producers to a streaming consumer.

The buffer is a bounded FIFO with lossy backpressure: a push against a full
buffer discards (and closes) the incoming frame instead of blocking the
producer, so the frames retained are always the oldest accepted ones. Pop
suspends the caller until a frame is available or its context ends; it never
spins.

	buf := framebuffer.New(10)
	defer buf.Close()

	go func() {
		for _, f := range frames {
			buf.Push(f)
		}
	}()

	for {
		f, err := buf.Pop(ctx)
		if err != nil {
			return err
		}
		emit(f)
		f.Close()
	}
*/
package framebuffer
