package cli

import (
	"github.com/spf13/cobra"

	"github.com/protobase/launchpad/cli/flags"
	"github.com/protobase/launchpad/cli/text"
	"github.com/protobase/launchpad/datastore"
)

var (
	addressesShort = "List deployed contracts from the address book"

	addressesLong = text.LongDesc(`
		Prints the address book records of deployed contracts as JSON, optionally narrowed to one
		network, one contract or one label.
	`)

	addressesExample = text.Examples(`
		# List every recorded deployment
		launchpad addresses

		# List the deployments of SimpleStorage on Sepolia
		launchpad addresses --network ethereum-testnet-sepolia --contract SimpleStorage
	`)
)

type addressesFlags struct {
	network  string
	contract string
	label    string
	file     string
}

// newAddressesCmd creates the "addresses" command.
func newAddressesCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:     "addresses",
		Short:   addressesShort,
		Long:    addressesLong,
		Example: addressesExample,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			f := addressesFlags{
				network:  flags.MustString(cmd.Flags().GetString("network")),
				contract: flags.MustString(cmd.Flags().GetString("contract")),
				label:    flags.MustString(cmd.Flags().GetString("label")),
				file:     flags.MustString(cmd.Flags().GetString("file")),
			}

			return runAddresses(cmd, a, f)
		},
	}

	cmd.Flags().StringP("network", "n", "", "Only list deployments on this network, as a chain selector or chain name")
	flags.Contract(cmd)
	cmd.Flags().String("label", "", "Only list deployments carrying this label")
	cmd.Flags().String("file", "", "Address book to read, overriding the configuration")

	return cmd
}

func runAddresses(cmd *cobra.Command, a *app, f addressesFlags) error {
	path := a.cfg.DatastoreFile
	if f.file != "" {
		path = f.file
	}

	store, err := datastore.LoadFile(path)
	if err != nil {
		return err
	}

	var filters []datastore.FilterFunc
	if f.network != "" {
		selector, serr := a.resolveSelector(f.network)
		if serr != nil {
			return serr
		}
		filters = append(filters, datastore.AddressRefByChainSelector(selector))
	}
	if f.contract != "" {
		filters = append(filters, datastore.AddressRefByContractName(f.contract))
	}
	if f.label != "" {
		filters = append(filters, datastore.AddressRefByLabel(f.label))
	}

	return writeJSON(cmd, "", store.Filter(filters...))
}
