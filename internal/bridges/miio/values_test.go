package miio

import "testing"

func TestFavoriteLevelForSpeed(t *testing.T) {
	tests := map[int]int{1: 1, 9: 1, 10: 2, 19: 2, 50: 6, 89: 9, 90: 10, 99: 10, 100: 10}
	for speed, want := range tests {
		if got := favoriteLevelForSpeed(speed); got != want {
			t.Errorf("favoriteLevelForSpeed(%d) = %d, want %d", speed, got, want)
		}
	}
}

func TestSpeedInLevelBand(t *testing.T) {
	tests := []struct {
		speed, level int
		want         bool
	}{
		{10, 1, true},
		{1, 1, true},
		{0, 1, false},
		{11, 1, false},
		{45, 5, true},
		{40, 5, false},
		{100, 10, true},
	}
	for _, tt := range tests {
		if got := speedInLevelBand(tt.speed, tt.level); got != tt.want {
			t.Errorf("speedInLevelBand(%d, %d) = %v, want %v", tt.speed, tt.level, got, tt.want)
		}
	}
}

func TestLEDLevels(t *testing.T) {
	tests := []struct {
		brightness     int
		wantLevel      int
		wantLevelForOn int
	}{
		{0, ledOff, ledBright},
		{1, ledDim, ledDim},
		{50, ledDim, ledDim},
		{51, ledBright, ledBright},
		{100, ledBright, ledBright},
	}
	for _, tt := range tests {
		if got := ledLevelForBrightness(tt.brightness); got != tt.wantLevel {
			t.Errorf("ledLevelForBrightness(%d) = %d, want %d", tt.brightness, got, tt.wantLevel)
		}
		if got := ledLevelForOn(tt.brightness); got != tt.wantLevelForOn {
			t.Errorf("ledLevelForOn(%d) = %d, want %d", tt.brightness, got, tt.wantLevelForOn)
		}
	}
}

func TestOnOff(t *testing.T) {
	if onOff(true) != "on" || onOff(false) != "off" {
		t.Error("onOff() keywords wrong")
	}
}
