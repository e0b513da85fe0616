package bus

// timerBits maps TAC clock select to the divider bit whose falling edge clocks TIMA.
var timerBits = [4]uint{9, 3, 5, 7}

// timerInput is the AND of the timer enable and the selected divider bit.
func (b *Bus) timerInput() bool {
	if b.tac&0x04 == 0 {
		return false
	}
	return (b.divInternal>>timerBits[b.tac&0x03])&1 != 0
}

func (b *Bus) tickTimer() {
	if b.reloadDelay > 0 {
		b.reloadDelay--
		if b.reloadDelay == 0 {
			b.tima = b.tma
			b.RequestInterrupt(IntTimer)
		}
	}
	prev := b.timerInput()
	b.divInternal++
	if prev && !b.timerInput() {
		b.incTIMA()
	}
}

// incTIMA counts one timer edge. Edges during a pending reload are dropped.
func (b *Bus) incTIMA() {
	if b.reloadDelay > 0 {
		return
	}
	b.tima++
	if b.tima == 0 {
		b.reloadDelay = 4
	}
}

func (b *Bus) writeDIV() {
	prev := b.timerInput()
	b.divInternal = 0
	if prev && !b.timerInput() {
		b.incTIMA()
	}
}

// ResetDIV clears the divider the way STOP does.
func (b *Bus) ResetDIV() { b.writeDIV() }

func (b *Bus) writeTIMA(v byte) {
	// a write during the reload delay cancels the reload
	b.reloadDelay = 0
	b.tima = v
}

func (b *Bus) writeTAC(v byte) {
	prev := b.timerInput()
	b.tac = v & 0x07
	if prev && !b.timerInput() {
		b.incTIMA()
	}
}
