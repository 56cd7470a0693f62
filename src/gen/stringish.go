package gen

//go:generate genny -in=fixed_pool.go -out=stringish_fixed_pool.go -pkg=gen gen "Generic=Stringish"
//go:generate genny -in=fixed_dl.go -out=stringish_fixed_dl.go -pkg=gen gen "Generic=Stringish"

type Stringish struct {
	S string
	L int
}


func NewStringish(s string) *Stringish {
	return &Stringish{s, len(s)}
}
