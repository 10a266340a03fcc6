package meter

import (
	"github.com/holysaw/holysaw"
	"github.com/viterin/vek/vek32"
)

// polyphase interpolation filter of ITU-R BS.1770, one row per phase
var oversamplingCoeffs = [4][12]float32{
	{0.0017089843750, 0.0109863281250, -0.0196533203125, 0.0332031250000, -0.0594482421875, 0.1373291015625, 0.9721679687500, -0.1022949218750, 0.0476074218750, -0.0266113281250, 0.0148925781250, -0.0083007812500},
	{-0.0291748046875, 0.0292968750000, -0.0517578125000, 0.0891113281250, -0.1665039062500, 0.4650878906250, 0.7797851562500, -0.2003173828125, 0.1015625000000, -0.0582275390625, 0.0330810546875, -0.0189208984375},
	{-0.0189208984375, 0.0330810546875, -0.058227539062, 0.1015625000000, -0.200317382812, 0.7797851562500, 0.4650878906250, -0.166503906250, 0.0891113281250, -0.051757812500, 0.0292968750000, -0.0291748046875},
	{-0.0083007812500, 0.0148925781250, -0.0266113281250, 0.0476074218750, -0.1022949218750, 0.9721679687500, 0.1373291015625, -0.0594482421875, 0.0332031250000, -0.0196533203125, 0.0109863281250, 0.0017089843750},
}

// TruePeak returns the peak of buf oversampled 4x, which also catches the
// peaks that fall between samples.
func TruePeak(buf holysaw.AudioBuffer) Decibel {
	if len(buf) == 0 {
		return Floor
	}
	o := oversample(buf)
	vek32.Abs_Inplace(o)
	return amplitudeToDecibel(max(vek32.Max(o), Summary(buf).Peak))
}

// oversample returns the 4x oversampled signal; samples before buf[0] are
// taken as silence.
func oversample(x []float32) []float32 {
	y := make([]float32, 4*len(x))
	r := make([]float32, len(x))
	tmp := make([]float32, len(x))
	for q, coeffs := range oversamplingCoeffs {
		vek32.Zeros_Into(r, len(x))
		for j, c := range coeffs {
			if j >= len(x) {
				break
			}
			// r[p] += c * x[p-j]
			vek32.Zeros_Into(tmp, j)
			vek32.MulNumber_Into(tmp[j:], x[:len(x)-j], c)
			vek32.Add_Inplace(r, tmp)
		}
		for p, v := range r {
			y[p*4+q] = v
		}
	}
	return y
}
