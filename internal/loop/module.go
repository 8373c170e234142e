package loop

// Module is the slice of a model's surface the loop helpers care about:
// switching between training and evaluation behavior.
type Module interface {
	// Train sets the module's mode: true for training, false for eval.
	Train(mode bool)
	// Training reports whether the module is in training mode.
	Training() bool
}

// SetModuleTrainingMode sets every module in the map to the given mode
// and returns each module's prior mode keyed by the same names, so the
// caller can restore state at the end of the loop.
func SetModuleTrainingMode(modules map[string]Module, mode bool) map[string]bool {
	prior := make(map[string]bool, len(modules))
	for name, m := range modules {
		prior[name] = m.Training()
		m.Train(mode)
	}
	return prior
}

// ResetModuleTrainingMode restores modes captured by
// SetModuleTrainingMode. Modules without an entry in prior are left
// untouched, so side effects made by the loop do not leak back to the
// caller for the modules it toggled.
func ResetModuleTrainingMode(modules map[string]Module, prior map[string]bool) {
	for name, m := range modules {
		if mode, ok := prior[name]; ok {
			m.Train(mode)
		}
	}
}
