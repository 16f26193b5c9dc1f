package main

import (
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// bindFlags maps viper keys to flags so an explicitly set flag overrides
// the config file and environment.
func bindFlags(v *viper.Viper, flags *pflag.FlagSet, keys map[string]string) {
	for key, name := range keys {
		if err := v.BindPFlag(key, flags.Lookup(name)); err != nil {
			panic(err)
		}
	}
}
