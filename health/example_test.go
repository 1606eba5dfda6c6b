// Copyright (c) 2026 Z5Labs and Contributors
//
// This software is released under the MIT License.
// https://opensource.org/licenses/MIT

package health

import (
	"context"
	"fmt"
)

func ExampleAnd() {
	var serving Binary
	var draining Binary
	draining.Set(false)

	ready := And(&serving, Not(&draining))
	fmt.Println(ready.Healthy(context.Background()))
	// Output: true
}

func ExampleOr() {
	var primary Binary
	var replica Binary
	primary.Toggle()

	fmt.Println(Or(&primary, &replica).Healthy(context.Background()))
	// Output: true
}
