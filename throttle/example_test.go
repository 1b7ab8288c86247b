package throttle_test

import (
	"fmt"

	"github.com/KanavDutta/tokenfence/core"
	"github.com/KanavDutta/tokenfence/pkg/tokenfence"
	"github.com/KanavDutta/tokenfence/throttle"
)

func ExampleWrap() {
	limiter, err := tokenfence.New(2, core.Minute)
	if err != nil {
		fmt.Println("error:", err)
		return
	}

	greet := throttle.Wrap(limiter, func(name string) {
		fmt.Println("hello", name)
	})

	for _, name := range []string{"ada", "grace", "linus"} {
		if !greet(name) {
			fmt.Println("throttled", name)
		}
	}
	// Output:
	// hello ada
	// hello grace
	// throttled linus
}
