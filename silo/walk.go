package silo

// WalkFunc is called for each entry during traversal. err is set when the
// entry could not be classified. Return nil to continue, ErrStopWalk to
// stop without an error, or any other error to stop with it.
type WalkFunc func(e Entry, err error) error

// ErrStopWalk can be returned from a WalkFunc to stop walking early.
var ErrStopWalk = &walkStopError{}

type walkStopError struct{}

func (e *walkStopError) Error() string { return "walk stopped" }

// IsStopWalk returns true if the error is ErrStopWalk.
func IsStopWalk(err error) bool {
	_, ok := err.(*walkStopError)
	return ok
}

// Walk visits every object below dir, parents before children. Aliases
// are reported but not followed, so each object is visited once.
//
// Example:
//
//	f.Walk("/", func(e silo.Entry, err error) error {
//	    if err != nil {
//	        return err
//	    }
//	    fmt.Println(e.Path, e.Kind)
//	    return nil
//	})
func (f *File) Walk(dir string, fn WalkFunc) error {
	err := f.walkDir(ResolvePath(f.cwd, dir), fn)
	if IsStopWalk(err) {
		return nil
	}
	return err
}

func (f *File) walkDir(dir string, fn WalkFunc) error {
	entries, err := f.List(dir)
	if err != nil {
		return fn(Entry{Path: dir, Kind: KindDir}, err)
	}
	for _, e := range entries {
		if err := fn(e, nil); err != nil {
			return err
		}
		if e.Kind == KindDir && e.Target == "" {
			if err := f.walkDir(e.Path, fn); err != nil {
				return err
			}
		}
	}
	return nil
}
