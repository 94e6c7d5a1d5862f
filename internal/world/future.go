package world

// Future is the result of a provisioning request. It is resolved on the
// control loop and its callbacks run there too.
type Future struct {
	done      bool
	handle    *Handle
	err       error
	callbacks []func(*Handle, error)
}

// Then registers fn to run with the result. If the future has already
// resolved fn runs immediately.
func (f *Future) Then(fn func(*Handle, error)) {
	if f.done {
		fn(f.handle, f.err)
		return
	}
	f.callbacks = append(f.callbacks, fn)
}

func (f *Future) Done() bool {
	return f.done
}

func (f *Future) Result() (*Handle, error) {
	return f.handle, f.err
}

func (f *Future) resolve(h *Handle, err error) {
	if f.done {
		return
	}
	f.done = true
	f.handle = h
	f.err = err

	callbacks := f.callbacks
	f.callbacks = nil
	for _, cb := range callbacks {
		cb(h, err)
	}
}
