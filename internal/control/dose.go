package control

// DoseMeter integrates delivered optical energy per unit area over a run.
// fullScale is the panel's irradiance at 100% intensity in mW/cm², a
// configuration constant from the panel datasheet; dose accumulates in
// mJ/cm² only while the panel is actually emitting.
type DoseMeter struct {
	fullScale float64
	mJ        float64
}

func NewDoseMeter(fullScaleMWcm2 float64) *DoseMeter {
	return &DoseMeter{fullScale: fullScaleMWcm2}
}

// Accumulate adds deltaMs of emission at pct intensity.
func (d *DoseMeter) Accumulate(pct float64, deltaMs uint32) {
	if pct <= 0 {
		return
	}
	d.mJ += d.fullScale * (pct / 100) * float64(deltaMs) / 1000
}

// DoseMJ returns the accumulated dose in mJ/cm².
func (d *DoseMeter) DoseMJ() float64 { return d.mJ }

// Reset clears the accumulator at run start.
func (d *DoseMeter) Reset() { d.mJ = 0 }
