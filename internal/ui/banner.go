package ui

import "fmt"

func PrintBanner(onlyBanner ...bool) {
	banner := `
     ██████╗ ██╗   ██╗██╗██╗     ██╗     ██╗  ██╗ ██████╗ ███████╗████████╗
    ██╔═══██╗██║   ██║██║██║     ██║     ██║  ██║██╔═══██╗██╔════╝╚══██╔══╝
    ██║   ██║██║   ██║██║██║     ██║     ███████║██║   ██║███████╗   ██║
    ██║▄▄ ██║██║   ██║██║██║     ██║     ██╔══██║██║   ██║╚════██║   ██║
    ╚██████╔╝╚██████╔╝██║███████╗███████╗██║  ██║╚██████╔╝███████║   ██║
     ╚══▀▀═╝  ╚═════╝ ╚═╝╚══════╝╚══════╝╚═╝  ╚═╝ ╚═════╝ ╚══════╝   ╚═╝
    `
	onlyBannerValue := false
	if len(onlyBanner) > 0 {
		onlyBannerValue = onlyBanner[0]
	}

	if !onlyBannerValue {
		usage := `
        Usage:
            panel-installer --domain=<fqdn> --email=<email> --admin=<user> \
                --first=<name> --last=<name> --pass=<password> [options]

            panel-installer <domain> <ssl> <email> <admin> <first> <last> <pass> <wings> [nodeDomain]

        Options:
            --ssl             Request a TLS certificate for the panel domain
            --tls-policy      strict | best-effort (default: best-effort)
            --wings           Also install the node agent on this host
            --node-domain     Separate domain for the node agent API
            --reserve-policy  percent:N | fixed:MEM_MIB,DISK_MIB (default: percent:20)
            --interactive     Prompt for any missing field instead of failing

        The generated credentials are written to /root/panel-install-summary.txt
        `
		fmt.Printf("\033[1;36m%s\033[0m\n%s", banner, usage)
		return
	}

	fmt.Printf("\033[1;36m%s\033[0m\n", banner)
}
