package main

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	"gopkg.in/urfave/cli.v1"
)

var checkCommand = cli.Command{
	Name:  "check",
	Usage: "Loads and decodes the dataset once and reports its size",
	Flags: []cli.Flag{
		configFlag,
		cli.StringFlag{Name: "source, s", Usage: "dataset location (path, file://, s3:// or minio://)"},
	},
	Action: runCheck,
}

func runCheck(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Source.Timeout)
	defer cancel()

	loader, err := newLoader(ctx, cfg)
	if err != nil {
		return err
	}
	ds, err := loader.Load(ctx)
	if err != nil {
		return errors.Wrapf(err, "check %s", loader.Location())
	}
	fmt.Printf("%s: %d records, sha256 %x\n", loader.Location(), len(ds.Records), ds.Checksum)
	return nil
}
