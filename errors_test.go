/*
Copyright © 2024 the WaterModel authors.
This file is part of WaterModel.

WaterModel is free software: you can redistribute it and/or modify
it under the terms of the GNU General Public License as published by
the Free Software Foundation, either version 3 of the License, or
(at your option) any later version.

WaterModel is distributed in the hope that it will be useful,
but WITHOUT ANY WARRANTY; without even the implied warranty of
MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
GNU General Public License for more details.

You should have received a copy of the GNU General Public License
along with WaterModel.  If not, see <http://www.gnu.org/licenses/>.
*/

package watermodel

import (
	"errors"
	"fmt"
	"strings"
	"testing"
)

func TestErrorKind(t *testing.T) {
	err := newError(ErrNoDrainageOutlet, "condition", "no valid boundary cell")
	if Kind(err) != ErrNoDrainageOutlet {
		t.Errorf("Kind = %v, want NoDrainageOutlet", Kind(err))
	}
	wrapped := fmt.Errorf("processing catchment x: %w", err)
	if Kind(wrapped) != ErrNoDrainageOutlet {
		t.Error("Kind must see through wrapping")
	}
	if Kind(errors.New("unrelated")) != 0 {
		t.Error("Kind of a foreign error must be zero")
	}
	msg := err.Error()
	for _, want := range []string{"condition", "NoDrainageOutlet"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}
